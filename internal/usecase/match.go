package usecase

import (
	"context"
	"fmt"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/reconcile"
)

// SetMatch pins a manual match between a system line and extract lines. It
// replaces any match the system line had and frees the extract lines from
// their previous matches.
func (uc *RunUseCase) SetMatch(ctx context.Context, runID, systemLineID string, extractLineIDs []string) (*domain.Run, error) {
	if systemLineID == "" {
		return nil, fmt.Errorf("%w: system line id is required", domain.ErrValidation)
	}

	return uc.mutate(ctx, runID, domain.AuditActionSetMatch, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}

		var previous []string
		if m, ok := run.MatchFor(systemLineID); ok {
			previous = append(previous, m.ExtractLineIDs...)
		}

		if _, err := reconcile.SetManualMatch(run, systemLineID, extractLineIDs, s.categories, uc.settings.Limits); err != nil {
			return err
		}

		s.details = domain.JSON{
			"system_line_id":   systemLineID,
			"extract_line_ids": extractLineIDs,
			"previous":         previous,
		}
		return nil
	})
}
