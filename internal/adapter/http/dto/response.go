package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SummaryResponse holds the headline counts of a run.
type SummaryResponse struct {
	RunID          string `json:"runId"`
	Matched        int    `json:"matched"`
	OnlyExtract    int    `json:"onlyExtract"`
	SystemOverdue  int    `json:"systemOverdue"`
	SystemDeferred int    `json:"systemDeferred"`
}

// SummaryFromDomain converts a run summary.
func SummaryFromDomain(s domain.RunSummary) SummaryResponse {
	return SummaryResponse{
		RunID:          s.RunID,
		Matched:        s.Matched,
		OnlyExtract:    s.OnlyExtract,
		SystemOverdue:  s.SystemOverdue,
		SystemDeferred: s.SystemDeferred,
	}
}

// MemberResponse is one member of a run.
type MemberResponse struct {
	UserID  string    `json:"userId"`
	Role    string    `json:"role"`
	AddedAt time.Time `json:"addedAt"`
}

// ExtractLineResponse is one bank statement line.
type ExtractLineResponse struct {
	ID         string          `json:"id"`
	Date       *string         `json:"date"`
	Concept    string          `json:"concept"`
	Amount     decimal.Decimal `json:"amount"`
	CategoryID string          `json:"categoryId,omitempty"`
	Excluded   bool            `json:"excluded"`
}

// SystemLineResponse is one internal ledger line.
type SystemLineResponse struct {
	ID          string          `json:"id"`
	IssueDate   *string         `json:"issueDate"`
	DueDate     *string         `json:"dueDate"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// MatchResponse pairs a system line with its extract lines.
type MatchResponse struct {
	SystemLineID   string   `json:"systemLineId"`
	ExtractLineIDs []string `json:"extractLineIds"`
	DeltaDays      int      `json:"deltaDays"`
	Manual         bool     `json:"manual"`
}

// UnmatchedSystemResponse is a system line without a match.
type UnmatchedSystemResponse struct {
	SystemLineID string `json:"systemLineId"`
	Status       string `json:"status"`
}

// PendingItemResponse represents a pending item in API responses.
type PendingItemResponse struct {
	ID           string     `json:"id"`
	SystemLineID string     `json:"systemLineId"`
	Area         string     `json:"area"`
	Status       string     `json:"status"`
	Note         string     `json:"note,omitempty"`
	CreatedByID  string     `json:"createdById"`
	CreatedAt    time.Time  `json:"createdAt"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

// PendingItemFromDomain converts a pending item.
func PendingItemFromDomain(p *domain.PendingItem) *PendingItemResponse {
	return &PendingItemResponse{
		ID:           p.ID,
		SystemLineID: p.SystemLineID,
		Area:         string(p.Area),
		Status:       string(p.Status),
		Note:         p.Note,
		CreatedByID:  p.CreatedByID,
		CreatedAt:    p.CreatedAt,
		ResolvedAt:   p.ResolvedAt,
	}
}

// MessageResponse represents a discussion message in API responses.
type MessageResponse struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageFromDomain converts a message.
func MessageFromDomain(m *domain.Message) *MessageResponse {
	return &MessageResponse{ID: m.ID, Body: m.Body, AuthorID: m.AuthorID, CreatedAt: m.CreatedAt}
}

// RunResponse is the full detail view of a run.
type RunResponse struct {
	ID                 string                    `json:"id"`
	Title              string                    `json:"title"`
	BankName           string                    `json:"bankName"`
	AccountRef         string                    `json:"accountRef,omitempty"`
	WindowDays         int                       `json:"windowDays"`
	CutDate            string                    `json:"cutDate"`
	DateBasis          string                    `json:"dateBasis"`
	Status             string                    `json:"status"`
	CreatedByID        string                    `json:"createdById"`
	Members            []MemberResponse          `json:"members"`
	ExtractLines       []ExtractLineResponse     `json:"extractLines"`
	SystemLines        []SystemLineResponse      `json:"systemLines"`
	Matches            []MatchResponse           `json:"matches"`
	UnmatchedExtract   []string                  `json:"unmatchedExtract"`
	UnmatchedSystem    []UnmatchedSystemResponse `json:"unmatchedSystem"`
	PendingItems       []*PendingItemResponse    `json:"pendingItems"`
	Messages           []*MessageResponse        `json:"messages"`
	ExcludeConcepts    []string                  `json:"excludeConcepts"`
	EnabledCategoryIDs []string                  `json:"enabledCategoryIds"`
	Version            int64                     `json:"version"`
	CreatedAt          time.Time                 `json:"createdAt"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
}

// RunFromDomain converts a run into its detail view.
func RunFromDomain(r *domain.Run) *RunResponse {
	resp := &RunResponse{
		ID:                 r.ID,
		Title:              r.Title,
		BankName:           r.BankName,
		AccountRef:         r.AccountRef,
		WindowDays:         r.WindowDays,
		CutDate:            r.CutDate.Format(domain.DateLayout),
		DateBasis:          string(r.DateBasis),
		Status:             string(r.Status),
		CreatedByID:        r.CreatedByID,
		Members:            make([]MemberResponse, 0, len(r.Members)),
		ExtractLines:       make([]ExtractLineResponse, 0, len(r.ExtractLines)),
		SystemLines:        make([]SystemLineResponse, 0, len(r.SystemLines)),
		Matches:            make([]MatchResponse, 0, len(r.Matches)),
		PendingItems:       make([]*PendingItemResponse, 0, len(r.PendingItems)),
		Messages:           make([]*MessageResponse, 0, len(r.Messages)),
		ExcludeConcepts:    nonNil(r.ExcludeConcepts),
		EnabledCategoryIDs: nonNil(r.EnabledCategoryIDs),
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}

	for _, m := range r.Members {
		resp.Members = append(resp.Members, MemberResponse{UserID: m.UserID, Role: string(m.Role), AddedAt: m.AddedAt})
	}
	for _, l := range r.ExtractLines {
		resp.ExtractLines = append(resp.ExtractLines, ExtractLineResponse{
			ID:         l.ID,
			Date:       formatDate(l.Date),
			Concept:    l.Concept,
			Amount:     l.Amount,
			CategoryID: l.CategoryID,
			Excluded:   l.Excluded,
		})
	}
	for _, l := range r.SystemLines {
		resp.SystemLines = append(resp.SystemLines, SystemLineResponse{
			ID:          l.ID,
			IssueDate:   formatDate(l.IssueDate),
			DueDate:     formatDate(l.DueDate),
			Description: l.Description,
			Amount:      l.Amount,
		})
	}
	for _, m := range r.Matches {
		resp.Matches = append(resp.Matches, MatchResponse{
			SystemLineID:   m.SystemLineID,
			ExtractLineIDs: nonNil(m.ExtractLineIDs),
			DeltaDays:      m.DeltaDays,
			Manual:         m.Manual,
		})
	}
	for i := range r.PendingItems {
		resp.PendingItems = append(resp.PendingItems, PendingItemFromDomain(&r.PendingItems[i]))
	}
	for i := range r.Messages {
		resp.Messages = append(resp.Messages, MessageFromDomain(&r.Messages[i]))
	}

	extract, system := r.Unmatched()
	resp.UnmatchedExtract = extract
	resp.UnmatchedSystem = make([]UnmatchedSystemResponse, 0, len(system))
	for _, u := range system {
		resp.UnmatchedSystem = append(resp.UnmatchedSystem, UnmatchedSystemResponse{
			SystemLineID: u.SystemLineID,
			Status:       string(u.Status),
		})
	}

	return resp
}

// RunListItem is the compact view used by the run list.
type RunListItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	BankName    string          `json:"bankName"`
	CutDate     string          `json:"cutDate"`
	Status      string          `json:"status"`
	CreatedByID string          `json:"createdById"`
	Summary     SummaryResponse `json:"summary"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// RunsFromDomain converts runs into list items.
func RunsFromDomain(runs []*domain.Run) []RunListItem {
	result := make([]RunListItem, len(runs))
	for i, r := range runs {
		result[i] = RunListItem{
			ID:          r.ID,
			Title:       r.Title,
			BankName:    r.BankName,
			CutDate:     r.CutDate.Format(domain.DateLayout),
			Status:      string(r.Status),
			CreatedByID: r.CreatedByID,
			Summary:     SummaryFromDomain(r.Summary()),
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return result
}

// WarningResponse is a row the normalizer skipped.
type WarningResponse struct {
	Side   string `json:"side"`
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// RunResultResponse is returned when rows were (re)normalized.
type RunResultResponse struct {
	Summary  SummaryResponse   `json:"summary"`
	Run      *RunResponse      `json:"run"`
	Warnings []WarningResponse `json:"warnings"`
}

// RunResultFromUseCase converts a run result.
func RunResultFromUseCase(res *usecase.RunResult) *RunResultResponse {
	warnings := make([]WarningResponse, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, WarningResponse{Side: w.Side, Row: w.Row, Column: w.Column, Reason: w.Reason})
	}
	return &RunResultResponse{
		Summary:  SummaryFromDomain(res.Summary),
		Run:      RunFromDomain(res.Run),
		Warnings: warnings,
	}
}

// PendingLineResponse is an active pending item with its system line.
type PendingLineResponse struct {
	PendingItemResponse
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"dueDate,omitempty"`
}

// AreaPendingResponse groups the active pending items of one area.
type AreaPendingResponse struct {
	Area       string                `json:"area"`
	Open       int                   `json:"open"`
	InProgress int                   `json:"inProgress"`
	Items      []PendingLineResponse `json:"items"`
}

// PendingSummaryFromDomain converts the per-area pending summary.
func PendingSummaryFromDomain(groups []domain.AreaPending) []AreaPendingResponse {
	result := make([]AreaPendingResponse, len(groups))
	for i, g := range groups {
		items := make([]PendingLineResponse, 0, len(g.Lines))
		for _, l := range g.Lines {
			item := l.Item
			items = append(items, PendingLineResponse{
				PendingItemResponse: *PendingItemFromDomain(&item),
				Description:         l.Description,
				Amount:              l.Amount,
				DueDate:             l.DueDate,
			})
		}
		result[i] = AreaPendingResponse{
			Area:       string(g.Area),
			Open:       g.Open,
			InProgress: g.InProgress,
			Items:      items,
		}
	}
	return result
}

// NotifyResultResponse reports the delivery to one area.
type NotifyResultResponse struct {
	Area      string `json:"area"`
	Recipient string `json:"recipient,omitempty"`
	Items     int    `json:"items"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

// NotifyResultsFromUseCase converts notification results.
func NotifyResultsFromUseCase(results []usecase.NotifyResult) []NotifyResultResponse {
	out := make([]NotifyResultResponse, len(results))
	for i, r := range results {
		out[i] = NotifyResultResponse{
			Area:      string(r.Area),
			Recipient: r.Recipient,
			Items:     r.Items,
			Sent:      r.Sent,
			Error:     r.Error,
		}
	}
	return out
}

// RuleResponse is one expense rule.
type RuleResponse struct {
	ID            string `json:"id"`
	Pattern       string `json:"pattern"`
	IsRegex       bool   `json:"isRegex"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// CategoryResponse represents a category in API responses.
type CategoryResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Rules     []RuleResponse `json:"rules"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// CategoryFromDomain converts a category.
func CategoryFromDomain(c *domain.Category) *CategoryResponse {
	rules := make([]RuleResponse, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = RuleResponse{ID: r.ID, Pattern: r.Pattern, IsRegex: r.IsRegex, CaseSensitive: r.CaseSensitive}
	}
	return &CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Rules:     rules,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CategoriesFromDomain converts categories.
func CategoriesFromDomain(categories []domain.Category) []*CategoryResponse {
	result := make([]*CategoryResponse, len(categories))
	for i := range categories {
		result[i] = CategoryFromDomain(&categories[i])
	}
	return result
}

// SheetResponse is a parsed spreadsheet.
type SheetResponse struct {
	Sheets  []string        `json:"sheets"`
	Sheet   string          `json:"sheet"`
	Columns []string        `json:"columns"`
	Rows    []domain.RawRow `json:"rows"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.DateLayout)
	return &s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
