package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

// AmountColumnsRequest selects the amount column(s) of a mapping.
type AmountColumnsRequest struct {
	AmountMode string `json:"amountMode"`
	AmountCol  string `json:"amountCol,omitempty"`
	DebeCol    string `json:"debeCol,omitempty"`
	HaberCol   string `json:"haberCol,omitempty"`
}

func (r AmountColumnsRequest) toDomain() domain.AmountColumns {
	mode := domain.AmountMode(r.AmountMode)
	if mode == "" {
		mode = domain.AmountModeSingle
	}
	return domain.AmountColumns{
		Mode:      mode,
		AmountCol: r.AmountCol,
		DebitCol:  r.DebeCol,
		CreditCol: r.HaberCol,
	}
}

// ExtractMappingRequest maps bank statement columns.
type ExtractMappingRequest struct {
	DateCol    string `json:"dateCol"`
	ConceptCol string `json:"conceptCol"`
	AmountColumnsRequest
}

// ToDomain converts the mapping.
func (r ExtractMappingRequest) ToDomain() domain.ExtractMapping {
	return domain.ExtractMapping{
		DateCol:    r.DateCol,
		ConceptCol: r.ConceptCol,
		Amount:     r.AmountColumnsRequest.toDomain(),
	}
}

// SystemMappingRequest maps internal ledger columns.
type SystemMappingRequest struct {
	IssueDateCol   string `json:"issueDateCol,omitempty"`
	DueDateCol     string `json:"dueDateCol,omitempty"`
	DescriptionCol string `json:"descriptionCol"`
	AmountColumnsRequest
}

// ToDomain converts the mapping.
func (r SystemMappingRequest) ToDomain() domain.SystemMapping {
	return domain.SystemMapping{
		IssueDateCol:   r.IssueDateCol,
		DueDateCol:     r.DueDateCol,
		DescriptionCol: r.DescriptionCol,
		Amount:         r.AmountColumnsRequest.toDomain(),
	}
}

// CreateRunRequest represents a request to create a run.
type CreateRunRequest struct {
	Title              string                `json:"title"`
	BankName           string                `json:"bankName"`
	AccountRef         string                `json:"accountRef,omitempty"`
	WindowDays         *int                  `json:"windowDays,omitempty"`
	CutDate            string                `json:"cutDate"`
	DateBasis          string                `json:"dateBasis,omitempty"`
	ExtractRows        []domain.RawRow       `json:"extractRows"`
	ExtractMapping     ExtractMappingRequest `json:"extractMapping"`
	SystemRows         []domain.RawRow       `json:"systemRows"`
	SystemMapping      SystemMappingRequest  `json:"systemMapping"`
	ExcludeConcepts    []string              `json:"excludeConcepts,omitempty"`
	EnabledCategoryIDs []string              `json:"enabledCategoryIds,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateRunRequest) ToUseCaseInput() (usecase.CreateRunInput, error) {
	var cut time.Time
	if strings.TrimSpace(r.CutDate) != "" {
		parsed, err := parseDate("cutDate", r.CutDate)
		if err != nil {
			return usecase.CreateRunInput{}, err
		}
		cut = parsed
	}

	return usecase.CreateRunInput{
		Title:              r.Title,
		BankName:           r.BankName,
		AccountRef:         r.AccountRef,
		WindowDays:         r.WindowDays,
		CutDate:            cut,
		DateBasis:          domain.DateBasis(r.DateBasis),
		ExtractRows:        r.ExtractRows,
		ExtractMapping:     r.ExtractMapping.ToDomain(),
		SystemRows:         r.SystemRows,
		SystemMapping:      r.SystemMapping.ToDomain(),
		ExcludeConcepts:    r.ExcludeConcepts,
		EnabledCategoryIDs: r.EnabledCategoryIDs,
	}, nil
}

// UpdateRunRequest is a partial run update. Absent fields are left alone.
type UpdateRunRequest struct {
	Title              *string   `json:"title,omitempty"`
	BankName           *string   `json:"bankName,omitempty"`
	AccountRef         *string   `json:"accountRef,omitempty"`
	WindowDays         *int      `json:"windowDays,omitempty"`
	CutDate            *string   `json:"cutDate,omitempty"`
	DateBasis          *string   `json:"dateBasis,omitempty"`
	EnabledCategoryIDs *[]string `json:"enabledCategoryIds,omitempty"`
	Status             *string   `json:"status,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateRunRequest) ToUseCaseInput() (usecase.UpdateRunInput, error) {
	input := usecase.UpdateRunInput{
		Title:      r.Title,
		BankName:   r.BankName,
		AccountRef: r.AccountRef,
		WindowDays: r.WindowDays,
	}
	if r.CutDate != nil {
		cut, err := parseDate("cutDate", *r.CutDate)
		if err != nil {
			return usecase.UpdateRunInput{}, err
		}
		input.CutDate = &cut
	}
	if r.DateBasis != nil {
		basis := domain.DateBasis(*r.DateBasis)
		input.DateBasis = &basis
	}
	if r.EnabledCategoryIDs != nil {
		input.EnabledCategoryIDs = *r.EnabledCategoryIDs
		input.SetCategories = true
	}
	if r.Status != nil {
		status := domain.RunStatus(strings.ToUpper(*r.Status))
		if status != domain.RunOpen && status != domain.RunClosed {
			return usecase.UpdateRunInput{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *r.Status)
		}
		input.Status = &status
	}
	return input, nil
}

// UpdateSystemRequest replaces the system side of a run.
type UpdateSystemRequest struct {
	Rows    []domain.RawRow      `json:"rows"`
	Mapping SystemMappingRequest `json:"mapping"`
}

// ExcludeConceptsRequest adds exclusion terms.
type ExcludeConceptsRequest struct {
	Concepts []string `json:"concepts"`
}

// RemoveConceptRequest removes one exclusion term.
type RemoveConceptRequest struct {
	Concept string `json:"concept"`
}

// ExcludeCategoryRequest excludes every line of a category.
type ExcludeCategoryRequest struct {
	CategoryID string `json:"categoryId"`
}

// SetMatchRequest overrides the match of a system line. An empty list clears it.
type SetMatchRequest struct {
	SystemLineID   string   `json:"systemLineId"`
	ExtractLineIDs []string `json:"extractLineIds"`
}

// AddMessageRequest posts to a run's discussion thread.
type AddMessageRequest struct {
	Body string `json:"body"`
}

// CreatePendingRequest represents a request to open a pending item.
type CreatePendingRequest struct {
	SystemLineID string `json:"systemLineId"`
	Area         string `json:"area"`
	Note         string `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePendingRequest) ToUseCaseInput() usecase.CreatePendingInput {
	return usecase.CreatePendingInput{
		SystemLineID: r.SystemLineID,
		Area:         domain.Area(r.Area),
		Note:         r.Note,
	}
}

// ResolvePendingRequest carries the resolution note.
type ResolvePendingRequest struct {
	Note string `json:"note"`
}

// NotifyRequest selects the areas to notify.
type NotifyRequest struct {
	Areas   []string `json:"areas"`
	Message string   `json:"message"`
}

// ToUseCaseInput converts to use case input.
func (r *NotifyRequest) ToUseCaseInput() usecase.NotifyInput {
	areas := make([]domain.Area, 0, len(r.Areas))
	for _, a := range r.Areas {
		areas = append(areas, domain.Area(a))
	}
	return usecase.NotifyInput{Areas: areas, Message: r.Message}
}

// SetMemberRequest grants a user a role on a run.
type SetMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// RuleRequest is one expense rule of a category.
type RuleRequest struct {
	Pattern       string `json:"pattern"`
	IsRegex       bool   `json:"isRegex"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// CategoryRequest creates or replaces a category.
type CategoryRequest struct {
	Name  string        `json:"name"`
	Rules []RuleRequest `json:"rules"`
}

// ToUseCaseInput converts to use case input.
func (r *CategoryRequest) ToUseCaseInput() usecase.CategoryInput {
	rules := make([]usecase.RuleInput, 0, len(r.Rules))
	for _, rule := range r.Rules {
		rules = append(rules, usecase.RuleInput{
			Pattern:       rule.Pattern,
			IsRegex:       rule.IsRegex,
			CaseSensitive: rule.CaseSensitive,
		})
	}
	return usecase.CategoryInput{Name: r.Name, Rules: rules}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrValidation, field)
	}
	return t, nil
}
