package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/domain"
)

// ErrExportUnavailable is returned when no exporter is configured.
var ErrExportUnavailable = errors.New("export is not configured")

// ExportRun renders the run into a workbook and returns it with a file name.
func (uc *RunUseCase) ExportRun(ctx context.Context, runID string) ([]byte, string, error) {
	if uc.exporter == nil {
		return nil, "", ErrExportUnavailable
	}

	run, err := uc.GetRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}

	data, err := uc.exporter.Export(ctx, run, uc.settings.Areas)
	if err != nil {
		return nil, "", fmt.Errorf("failed to export run %s: %w", runID, err)
	}

	name := fmt.Sprintf("reconciliation-%s-%s.xlsx", run.CutDate.Format(domain.DateLayout), run.ID)
	return data, name, nil
}

// NotifyInput selects the areas to notify. No areas means every area with
// active pending items.
type NotifyInput struct {
	Areas   []domain.Area
	Message string
}

// NotifyResult reports the delivery to one area.
type NotifyResult struct {
	Area      domain.Area
	Recipient string
	Items     int
	Sent      bool
	Error     string
}

// Notify sends each selected area a summary of its active pending items.
// Delivery failures are reported per area and do not fail the call.
func (uc *RunUseCase) Notify(ctx context.Context, runID string, input NotifyInput) ([]NotifyResult, error) {
	if uc.notifier == nil {
		return nil, fmt.Errorf("%w: notifications are not configured", domain.ErrInvalidState)
	}
	for _, area := range input.Areas {
		if !uc.settings.Areas.Contains(area) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownArea, area)
		}
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	run, err := uc.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := run.AuthorizeEdit(actor); err != nil {
		return nil, err
	}

	selected := make(map[domain.Area]bool, len(input.Areas))
	for _, area := range input.Areas {
		selected[area] = true
	}

	results := make([]NotifyResult, 0)
	for _, group := range run.PendingByArea(uc.settings.Areas) {
		if len(input.Areas) > 0 && !selected[group.Area] {
			continue
		}
		if len(input.Areas) == 0 && len(group.Lines) == 0 {
			continue
		}

		result := NotifyResult{Area: group.Area, Items: len(group.Lines)}
		result.Recipient = uc.settings.Recipients[group.Area]
		if result.Recipient == "" {
			result.Error = domain.ErrNoRecipient.Error()
			results = append(results, result)
			continue
		}

		err := uc.notifier.Notify(ctx, domain.AreaNotification{
			RunID:     run.ID,
			RunTitle:  run.Title,
			BankName:  run.BankName,
			Area:      group.Area,
			Recipient: result.Recipient,
			Message:   input.Message,
			Lines:     group.Lines,
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("run_id", run.ID).Str("area", string(group.Area)).Msg("notification failed")
			result.Error = err.Error()
		} else {
			result.Sent = true
			if uc.metrics != nil {
				uc.metrics.NotificationsSent.WithLabelValues(string(group.Area)).Inc()
			}
		}
		results = append(results, result)
	}

	uc.auditNotify(ctx, run.ID, actor, results)
	return results, nil
}

func (uc *RunUseCase) auditNotify(ctx context.Context, runID, actor string, results []NotifyResult) {
	if uc.auditRepo == nil {
		return
	}

	auditLog := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		UserID:       actor,
		Action:       domain.AuditActionNotify,
		ResourceType: domain.AggregateTypeRun,
		ResourceID:   runID,
		RequestID:    requestIDFromContext(ctx),
		Details:      domain.JSON{"results": results},
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    uc.now(),
	}
	if err := uc.auditRepo.Create(ctx, auditLog); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("run_id", runID).Msg("failed to audit notification")
	}
}
