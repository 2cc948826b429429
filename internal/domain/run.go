package domain

import (
	"sort"
	"time"
)

// RunStatus is the lifecycle state of a reconciliation run.
type RunStatus string

const (
	RunOpen   RunStatus = "OPEN"
	RunClosed RunStatus = "CLOSED"
)

// MemberRole is a member's access level on a run.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleEditor MemberRole = "EDITOR"
	RoleViewer MemberRole = "VIEWER"
)

// IsValid reports whether the role is known.
func (r MemberRole) IsValid() bool {
	return r == RoleOwner || r == RoleEditor || r == RoleViewer
}

// CanEdit reports whether the role may mutate a run.
func (r MemberRole) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// Member grants a user access to a run.
type Member struct {
	UserID  string
	Role    MemberRole
	AddedAt time.Time
}

// Run is a reconciliation run: both ledgers, the match set, the exclusions and
// the human follow-up recorded on top of it.
type Run struct {
	ID                 string
	Title              string
	BankName           string
	AccountRef         string
	WindowDays         int
	CutDate            time.Time
	DateBasis          DateBasis
	Status             RunStatus
	CreatedByID        string
	Members            []Member
	ExtractMapping     ExtractMapping
	SystemMapping      SystemMapping
	ExtractLines       []ExtractLine
	SystemLines        []SystemLine
	Matches            []Match
	PendingItems       []PendingItem
	Messages           []Message
	ExcludeConcepts    []string
	EnabledCategoryIDs []string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RunSummary holds the headline counts of a run.
type RunSummary struct {
	RunID          string
	Matched        int
	OnlyExtract    int
	SystemOverdue  int
	SystemDeferred int
}

// RoleOf returns the user's role on the run.
func (r *Run) RoleOf(userID string) (MemberRole, bool) {
	for _, m := range r.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

// AuthorizeRead fails unless the user is a member.
func (r *Run) AuthorizeRead(userID string) error {
	if _, ok := r.RoleOf(userID); !ok {
		return ErrNotMember
	}
	return nil
}

// AuthorizeEdit fails unless the user is an owner or editor.
func (r *Run) AuthorizeEdit(userID string) error {
	role, ok := r.RoleOf(userID)
	if !ok {
		return ErrNotMember
	}
	if !role.CanEdit() {
		return ErrReadOnlyMember
	}
	return nil
}

// AuthorizeOwner fails unless the user owns the run.
func (r *Run) AuthorizeOwner(userID string) error {
	role, ok := r.RoleOf(userID)
	if !ok {
		return ErrNotMember
	}
	if role != RoleOwner {
		return ErrOwnerRequired
	}
	return nil
}

// RequireOpen fails when the run is closed.
func (r *Run) RequireOpen() error {
	if r.Status == RunClosed {
		return ErrRunClosed
	}
	return nil
}

// Close marks the run read-only.
func (r *Run) Close(at time.Time) error {
	if err := r.RequireOpen(); err != nil {
		return err
	}
	r.Status = RunClosed
	r.UpdatedAt = at
	return nil
}

// Reopen makes a closed run editable again. Only the creator may reopen.
func (r *Run) Reopen(userID string, at time.Time) error {
	if r.Status != RunClosed {
		return ErrRunNotClosed
	}
	if userID != r.CreatedByID {
		return ErrReopenNotCreator
	}
	r.Status = RunOpen
	r.UpdatedAt = at
	return nil
}

// SetMember adds the member or changes the role of an existing one.
func (r *Run) SetMember(userID string, role MemberRole, at time.Time) error {
	if !role.IsValid() || role == RoleOwner {
		return ErrInvalidRole
	}
	if userID == r.CreatedByID {
		return ErrCannotRemoveOwner
	}
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			r.Members[i].Role = role
			return nil
		}
	}
	r.Members = append(r.Members, Member{UserID: userID, Role: role, AddedAt: at})
	return nil
}

// RemoveMember revokes a user's access. The creator cannot be removed.
func (r *Run) RemoveMember(userID string) error {
	if userID == r.CreatedByID {
		return ErrCannotRemoveOwner
	}
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

// SystemLine looks up a system line by id.
func (r *Run) SystemLine(id string) (*SystemLine, bool) {
	for i := range r.SystemLines {
		if r.SystemLines[i].ID == id {
			return &r.SystemLines[i], true
		}
	}
	return nil, false
}

// ExtractLine looks up an extract line by id.
func (r *Run) ExtractLine(id string) (*ExtractLine, bool) {
	for i := range r.ExtractLines {
		if r.ExtractLines[i].ID == id {
			return &r.ExtractLines[i], true
		}
	}
	return nil, false
}

// MatchFor returns the match of a system line, if any.
func (r *Run) MatchFor(systemLineID string) (*Match, bool) {
	for i := range r.Matches {
		if r.Matches[i].SystemLineID == systemLineID {
			return &r.Matches[i], true
		}
	}
	return nil, false
}

// PendingItem looks up a pending item by id.
func (r *Run) PendingItem(id string) (*PendingItem, bool) {
	for i := range r.PendingItems {
		if r.PendingItems[i].ID == id {
			return &r.PendingItems[i], true
		}
	}
	return nil, false
}

// ActivePendingFor returns the unresolved pending item of a system line, if any.
func (r *Run) ActivePendingFor(systemLineID string) (*PendingItem, bool) {
	for i := range r.PendingItems {
		p := &r.PendingItems[i]
		if p.SystemLineID == systemLineID && p.IsActive() {
			return p, true
		}
	}
	return nil, false
}

// Unmatched derives both unmatched lists from the current match set. Excluded
// extract lines are in neither list.
func (r *Run) Unmatched() ([]string, []UnmatchedSystem) {
	matchedExtract := make(map[string]bool)
	matchedSystem := make(map[string]bool, len(r.Matches))
	for _, m := range r.Matches {
		matchedSystem[m.SystemLineID] = true
		for _, id := range m.ExtractLineIDs {
			matchedExtract[id] = true
		}
	}

	extract := make([]string, 0)
	for _, l := range r.ExtractLines {
		if !l.Excluded && !matchedExtract[l.ID] {
			extract = append(extract, l.ID)
		}
	}

	system := make([]UnmatchedSystem, 0)
	for _, l := range r.SystemLines {
		if matchedSystem[l.ID] {
			continue
		}
		system = append(system, UnmatchedSystem{
			SystemLineID: l.ID,
			Status:       ClassifyUnmatched(l.RelevantDate(r.DateBasis), r.CutDate),
		})
	}

	return extract, system
}

// Summary counts matches and unmatched lines.
func (r *Run) Summary() RunSummary {
	extract, system := r.Unmatched()
	s := RunSummary{
		RunID:       r.ID,
		Matched:     len(r.Matches),
		OnlyExtract: len(extract),
	}
	for _, u := range system {
		if u.Status == UnmatchedOverdue {
			s.SystemOverdue++
		} else {
			s.SystemDeferred++
		}
	}
	return s
}

// AddExcludedConcepts merges normalized terms into the exclusion set and
// reports whether the set changed.
func (r *Run) AddExcludedConcepts(concepts ...string) bool {
	set := make(map[string]bool, len(r.ExcludeConcepts))
	for _, c := range r.ExcludeConcepts {
		set[c] = true
	}

	changed := false
	for _, c := range concepts {
		n := NormalizeConcept(c)
		if n == "" || set[n] {
			continue
		}
		set[n] = true
		changed = true
	}
	if !changed {
		return false
	}

	r.ExcludeConcepts = sortedKeys(set)
	return true
}

// RemoveExcludedConcept drops a term from the exclusion set and reports whether
// it was present.
func (r *Run) RemoveExcludedConcept(concept string) bool {
	n := NormalizeConcept(concept)
	for i, c := range r.ExcludeConcepts {
		if c == n {
			r.ExcludeConcepts = append(r.ExcludeConcepts[:i], r.ExcludeConcepts[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the run.
func (r *Run) Clone() *Run {
	c := *r
	c.Members = append([]Member(nil), r.Members...)
	c.ExtractLines = make([]ExtractLine, len(r.ExtractLines))
	for i, l := range r.ExtractLines {
		l.Date = cloneTime(l.Date)
		c.ExtractLines[i] = l
	}
	c.SystemLines = make([]SystemLine, len(r.SystemLines))
	for i, l := range r.SystemLines {
		l.IssueDate = cloneTime(l.IssueDate)
		l.DueDate = cloneTime(l.DueDate)
		c.SystemLines[i] = l
	}
	c.Matches = make([]Match, len(r.Matches))
	for i, m := range r.Matches {
		m.ExtractLineIDs = append([]string(nil), m.ExtractLineIDs...)
		c.Matches[i] = m
	}
	c.PendingItems = make([]PendingItem, len(r.PendingItems))
	for i, p := range r.PendingItems {
		p.ResolvedAt = cloneTime(p.ResolvedAt)
		c.PendingItems[i] = p
	}
	c.Messages = append([]Message(nil), r.Messages...)
	c.ExcludeConcepts = append([]string(nil), r.ExcludeConcepts...)
	c.EnabledCategoryIDs = append([]string(nil), r.EnabledCategoryIDs...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
