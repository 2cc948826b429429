package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/classify"
	"github.com/iho/bankrecon/internal/domain"
)

// CategoryUseCase manages expense categories. Edits only affect runs the next
// time they are recomputed.
type CategoryUseCase struct {
	categoryRepo CategoryRepository
	auditRepo    AuditRepository
	idGen        IDGenerator
}

// NewCategoryUseCase creates a new CategoryUseCase.
func NewCategoryUseCase(categoryRepo CategoryRepository, auditRepo AuditRepository, idGen IDGenerator) *CategoryUseCase {
	return &CategoryUseCase{
		categoryRepo: categoryRepo,
		auditRepo:    auditRepo,
		idGen:        idGen,
	}
}

// RuleInput describes one expense rule.
type RuleInput struct {
	Pattern       string
	IsRegex       bool
	CaseSensitive bool
}

// CategoryInput represents input for creating or replacing a category.
type CategoryInput struct {
	Name  string
	Rules []RuleInput
}

// CreateCategory creates a category with its rules.
func (uc *CategoryUseCase) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:        uc.idGen.Generate(),
		Name:      strings.TrimSpace(input.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	category.Rules = uc.buildRules(category.ID, input.Rules)

	if err := category.Validate(); err != nil {
		return nil, err
	}
	if err := uc.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	uc.audit(ctx, actor, domain.AuditActionCategoryCreate, category.ID, domain.MarshalState(category))
	logInvalidRules(ctx, *category)

	return category, nil
}

// UpdateCategory replaces the name and rules of a category.
func (uc *CategoryUseCase) UpdateCategory(ctx context.Context, id string, input CategoryInput) (*domain.Category, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	category, err := uc.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = strings.TrimSpace(input.Name)
	category.Rules = uc.buildRules(category.ID, input.Rules)
	category.UpdatedAt = time.Now().UTC()

	if err := category.Validate(); err != nil {
		return nil, err
	}
	if err := uc.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}

	uc.audit(ctx, actor, domain.AuditActionCategoryUpdate, category.ID, domain.MarshalState(category))
	logInvalidRules(ctx, *category)

	return category, nil
}

// DeleteCategory removes a category. Concepts already excluded through it
// stay excluded.
func (uc *CategoryUseCase) DeleteCategory(ctx context.Context, id string) error {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	if err := uc.categoryRepo.Delete(ctx, id); err != nil {
		return err
	}

	uc.audit(ctx, actor, domain.AuditActionCategoryDelete, id, nil)
	return nil
}

// GetCategory retrieves a category by ID.
func (uc *CategoryUseCase) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	return uc.categoryRepo.GetByID(ctx, id)
}

// ListCategories lists categories in priority order.
func (uc *CategoryUseCase) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return uc.categoryRepo.List(ctx)
}

func (uc *CategoryUseCase) buildRules(categoryID string, inputs []RuleInput) []domain.ExpenseRule {
	rules := make([]domain.ExpenseRule, 0, len(inputs))
	for _, in := range inputs {
		rules = append(rules, domain.ExpenseRule{
			ID:            uc.idGen.Generate(),
			CategoryID:    categoryID,
			Pattern:       in.Pattern,
			IsRegex:       in.IsRegex,
			CaseSensitive: in.CaseSensitive,
		})
	}
	return rules
}

func (uc *CategoryUseCase) audit(ctx context.Context, actor string, action domain.AuditAction, id string, details domain.JSON) {
	if uc.auditRepo == nil {
		return
	}

	auditLog := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		UserID:       actor,
		Action:       action,
		ResourceType: "category",
		ResourceID:   id,
		RequestID:    requestIDFromContext(ctx),
		Details:      details,
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.auditRepo.Create(ctx, auditLog); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("category_id", id).Msg("failed to audit category change")
	}
}

// logInvalidRules warns about regex rules that will never match.
func logInvalidRules(ctx context.Context, category domain.Category) {
	for _, r := range classify.New([]domain.Category{category}).InvalidRules() {
		zerolog.Ctx(ctx).Warn().
			Str("category_id", r.CategoryID).
			Str("pattern", r.Pattern).
			Err(r.Err).
			Msg("regex rule does not compile and will never match")
	}
}
