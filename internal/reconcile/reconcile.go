// Package reconcile holds the state transitions of a reconciliation run. Every
// function works on an in-memory run and leaves persistence to the caller.
package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankrecon/internal/classify"
	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/matching"
)

// Limits bounds the combinatorial matching pass.
type Limits struct {
	MaxCombination int
	MaxCandidates  int
}

// Outcome reports what a recomputation did.
type Outcome struct {
	Stats            matching.Stats
	KeptOverrides    int
	DroppedOverrides []string
	InvalidRules     []classify.InvalidRule
}

// ApplyExclusions recomputes the excluded flag of every extract line.
func ApplyExclusions(run *domain.Run) {
	for i := range run.ExtractLines {
		l := &run.ExtractLines[i]
		l.Excluded = domain.IsConceptExcluded(l.Concept, run.ExcludeConcepts)
	}
}

// ApplyCategories classifies every extract line with the run's enabled categories.
func ApplyCategories(run *domain.Run, categories []domain.Category) []classify.InvalidRule {
	c := classify.New(classify.Enabled(categories, run.EnabledCategoryIDs))
	for i := range run.ExtractLines {
		l := &run.ExtractLines[i]
		l.CategoryID = c.Classify(l.Concept)
	}
	return c.InvalidRules()
}

// ConceptsInCategory lists the distinct concepts currently classified under
// the category, in line order.
func ConceptsInCategory(run *domain.Run, categoryID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range run.ExtractLines {
		if l.CategoryID != categoryID {
			continue
		}
		n := domain.NormalizeConcept(l.Concept)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Recompute reapplies exclusions and classification, keeps the manual matches
// that are still valid and rematches everything else.
func Recompute(run *domain.Run, categories []domain.Category, limits Limits) Outcome {
	var out Outcome

	ApplyExclusions(run)
	out.InvalidRules = ApplyCategories(run, categories)

	kept, dropped := validOverrides(run)
	out.KeptOverrides = len(kept)
	out.DroppedOverrides = dropped

	claimedExtract := make(map[string]bool)
	claimedSystem := make(map[string]bool, len(kept))
	for _, m := range kept {
		claimedSystem[m.SystemLineID] = true
		for _, id := range m.ExtractLineIDs {
			claimedExtract[id] = true
		}
	}

	extract := make([]domain.ExtractLine, 0, len(run.ExtractLines))
	for _, l := range run.ExtractLines {
		if !claimedExtract[l.ID] {
			extract = append(extract, l)
		}
	}
	system := make([]domain.SystemLine, 0, len(run.SystemLines))
	for _, l := range run.SystemLines {
		if !claimedSystem[l.ID] {
			system = append(system, l)
		}
	}

	res := matching.Match(extract, system, matching.Options{
		WindowDays:     run.WindowDays,
		CutDate:        run.CutDate,
		DateBasis:      run.DateBasis,
		MaxCombination: limits.MaxCombination,
		MaxCandidates:  limits.MaxCandidates,
	})
	out.Stats = res.Stats

	run.Matches = append(kept, res.Matches...)
	sortMatches(run)

	return out
}

// validOverrides keeps manual matches whose lines all still exist, are not
// excluded, are not claimed twice and still add up.
func validOverrides(run *domain.Run) ([]domain.Match, []string) {
	var kept []domain.Match
	var dropped []string
	claimed := make(map[string]bool)

	for _, m := range run.Matches {
		if !m.Manual {
			continue
		}
		sys, ok := run.SystemLine(m.SystemLineID)
		if !ok || len(m.ExtractLineIDs) == 0 {
			dropped = append(dropped, m.SystemLineID)
			continue
		}
		lines, err := collectExtract(run, m.ExtractLineIDs)
		if err != nil || anyClaimed(m.ExtractLineIDs, claimed) || !domain.WithinEpsilon(sumAmounts(lines), sys.Amount) {
			dropped = append(dropped, m.SystemLineID)
			continue
		}

		for _, id := range m.ExtractLineIDs {
			claimed[id] = true
		}
		m.ExtractLineIDs = append([]string(nil), m.ExtractLineIDs...)
		m.DeltaDays = closestDelta(sys.RelevantDate(run.DateBasis), lines)
		kept = append(kept, m)
	}

	return kept, dropped
}

// SetManualMatch validates and pins a match for the system line, then
// rematches the rest of the run. Extract lines taken from another manual match
// dissolve that match. An empty extractLineIDs clears the line's match and
// hands it back to automatic matching.
func SetManualMatch(run *domain.Run, systemLineID string, extractLineIDs []string, categories []domain.Category, limits Limits) (Outcome, error) {
	sys, ok := run.SystemLine(systemLineID)
	if !ok {
		return Outcome{}, domain.ErrSystemLineNotFound
	}
	if len(extractLineIDs) == 0 {
		return ClearManualMatch(run, systemLineID, categories, limits), nil
	}
	lines, err := collectExtract(run, extractLineIDs)
	if err != nil {
		return Outcome{}, err
	}
	if !domain.WithinEpsilon(sumAmounts(lines), sys.Amount) {
		return Outcome{}, domain.ErrAmountMismatch
	}

	taken := make(map[string]bool, len(extractLineIDs))
	for _, id := range extractLineIDs {
		taken[id] = true
	}

	matches := make([]domain.Match, 0, len(run.Matches)+1)
	for _, m := range run.Matches {
		if m.SystemLineID == systemLineID {
			continue
		}
		if m.Manual && anyClaimed(m.ExtractLineIDs, taken) {
			continue
		}
		matches = append(matches, m)
	}
	matches = append(matches, domain.Match{
		SystemLineID:   systemLineID,
		ExtractLineIDs: append([]string(nil), extractLineIDs...),
		DeltaDays:      closestDelta(sys.RelevantDate(run.DateBasis), lines),
		Manual:         true,
	})
	run.Matches = matches

	return Recompute(run, categories, limits), nil
}

// ClearManualMatch drops whatever match the system line has and recomputes.
func ClearManualMatch(run *domain.Run, systemLineID string, categories []domain.Category, limits Limits) Outcome {
	matches := make([]domain.Match, 0, len(run.Matches))
	for _, m := range run.Matches {
		if m.SystemLineID != systemLineID {
			matches = append(matches, m)
		}
	}
	run.Matches = matches

	return Recompute(run, categories, limits)
}

// Carry reports what survived a system data replacement.
type Carry struct {
	ReusedIDs      int
	DroppedPending []string
}

// ReplaceSystemLines swaps in a new system side. A new line takes over the id
// of an old line with the same business key, so pending items and manual
// matches follow it. Pending items whose line is gone are dropped.
func ReplaceSystemLines(run *domain.Run, fresh []domain.SystemLine) Carry {
	var carry Carry

	previous := make(map[string][]string)
	for _, l := range run.SystemLines {
		k := l.BusinessKey()
		previous[k] = append(previous[k], l.ID)
	}

	present := make(map[string]bool, len(fresh))
	for i := range fresh {
		k := fresh[i].BusinessKey()
		if ids := previous[k]; len(ids) > 0 {
			fresh[i].ID = ids[0]
			previous[k] = ids[1:]
			carry.ReusedIDs++
		}
		present[fresh[i].ID] = true
	}
	run.SystemLines = fresh

	pending := run.PendingItems[:0]
	for _, p := range run.PendingItems {
		if present[p.SystemLineID] {
			pending = append(pending, p)
			continue
		}
		carry.DroppedPending = append(carry.DroppedPending, p.ID)
	}
	run.PendingItems = pending

	return carry
}

func collectExtract(run *domain.Run, ids []string) ([]domain.ExtractLine, error) {
	seen := make(map[string]bool, len(ids))
	lines := make([]domain.ExtractLine, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, domain.ErrDuplicateExtractID
		}
		seen[id] = true

		l, ok := run.ExtractLine(id)
		if !ok {
			return nil, domain.ErrExtractLineNotFound
		}
		if l.Excluded {
			return nil, domain.ErrExtractLineExcluded
		}
		lines = append(lines, *l)
	}
	return lines, nil
}

func anyClaimed(ids []string, claimed map[string]bool) bool {
	for _, id := range ids {
		if claimed[id] {
			return true
		}
	}
	return false
}

func sumAmounts(lines []domain.ExtractLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount)
	}
	return sum
}

// closestDelta is the signed day distance of the line closest to the relevant
// date, or 0 when either side has no date.
func closestDelta(relevant *time.Time, lines []domain.ExtractLine) int {
	if relevant == nil {
		return 0
	}
	best, bestAbs := 0, -1
	for _, l := range lines {
		if l.Date == nil {
			continue
		}
		d := domain.DaysBetween(*relevant, *l.Date)
		a := d
		if a < 0 {
			a = -a
		}
		if bestAbs == -1 || a < bestAbs {
			best, bestAbs = d, a
		}
	}
	return best
}

func sortMatches(run *domain.Run) {
	pos := make(map[string]int, len(run.SystemLines))
	for i, l := range run.SystemLines {
		pos[l.ID] = i
	}
	sort.SliceStable(run.Matches, func(a, b int) bool {
		return pos[run.Matches[a].SystemLineID] < pos[run.Matches[b].SystemLineID]
	})
}
