package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/reconcile"
)

// ExcludeConcepts adds concepts to the run's exclusion set and rematches.
// Concepts that are already excluded are ignored.
func (uc *RunUseCase) ExcludeConcepts(ctx context.Context, runID string, concepts []string) (*domain.Run, error) {
	if err := domain.ValidateConcepts(concepts); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, runID, domain.AuditActionExcludeConcepts, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}

		if !run.AddExcludedConcepts(concepts...) {
			s.unchanged = true
			return nil
		}
		uc.recompute(s.ctx, run, s.categories)

		s.details = domain.JSON{"concepts": concepts, "exclude_concepts": run.ExcludeConcepts}
		return nil
	})
}

// RemoveExcludedConcept drops a concept from the exclusion set and rematches.
// Removing a concept that is not excluded is a no-op.
func (uc *RunUseCase) RemoveExcludedConcept(ctx context.Context, runID, concept string) (*domain.Run, error) {
	if err := domain.ValidateConcepts([]string{concept}); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, runID, domain.AuditActionIncludeConcept, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}

		if !run.RemoveExcludedConcept(concept) {
			s.unchanged = true
			return nil
		}
		uc.recompute(s.ctx, run, s.categories)

		s.details = domain.JSON{"concept": concept, "exclude_concepts": run.ExcludeConcepts}
		return nil
	})
}

// ExcludeByCategory excludes every concept currently classified under the
// category. The concepts are recorded one by one, so later rule edits do not
// change them.
func (uc *RunUseCase) ExcludeByCategory(ctx context.Context, runID, categoryID string) (*domain.Run, error) {
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category id is required", domain.ErrValidation)
	}
	if _, err := uc.categoryRepo.GetByID(ctx, categoryID); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, runID, domain.AuditActionExcludeCategory, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}

		if !slices.Contains(run.EnabledCategoryIDs, categoryID) {
			return domain.ErrCategoryNotEnabled
		}

		reconcile.ApplyCategories(run, s.categories)
		concepts := reconcile.ConceptsInCategory(run, categoryID)
		if !run.AddExcludedConcepts(concepts...) {
			s.unchanged = true
			return nil
		}
		uc.recompute(s.ctx, run, s.categories)

		s.details = domain.JSON{"category_id": categoryID, "concepts": concepts}
		return nil
	})
}
