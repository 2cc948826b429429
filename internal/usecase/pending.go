package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/iho/bankrecon/internal/domain"
)

// CreatePendingInput represents input for creating a pending item.
type CreatePendingInput struct {
	SystemLineID string
	Area         domain.Area
	Note         string
}

// CreatePending opens a follow-up item on an unmatched system line. A second
// active item on the same line is rejected.
func (uc *RunUseCase) CreatePending(ctx context.Context, runID string, input CreatePendingInput) (*domain.PendingItem, error) {
	if input.SystemLineID == "" {
		return nil, fmt.Errorf("%w: system line id is required", domain.ErrValidation)
	}
	if !uc.settings.Areas.Contains(input.Area) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownArea, input.Area)
	}

	var created domain.PendingItem
	_, err := uc.mutate(ctx, runID, domain.AuditActionPendingCreate, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}
		if _, ok := run.SystemLine(input.SystemLineID); !ok {
			return domain.ErrSystemLineNotFound
		}
		if _, ok := run.MatchFor(input.SystemLineID); ok {
			return domain.ErrSystemLineMatched
		}
		if _, ok := run.ActivePendingFor(input.SystemLineID); ok {
			return domain.ErrDuplicatePending
		}

		created = domain.PendingItem{
			ID:           uc.idGen.Generate(),
			SystemLineID: input.SystemLineID,
			Area:         input.Area,
			Status:       domain.PendingOpen,
			Note:         strings.TrimSpace(input.Note),
			CreatedByID:  s.actor,
			CreatedAt:    s.now,
		}
		run.PendingItems = append(run.PendingItems, created)

		s.details = domain.MarshalState(created)
		s.emit(domain.EventTypePendingCreated, pendingEvent(run.ID, created, s.actor))
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.countPending("create")
	return &created, nil
}

// StartPending moves an OPEN item to IN_PROGRESS.
func (uc *RunUseCase) StartPending(ctx context.Context, runID, pendingID string) (*domain.PendingItem, error) {
	var started domain.PendingItem
	_, err := uc.mutate(ctx, runID, domain.AuditActionPendingStart, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}
		item, ok := run.PendingItem(pendingID)
		if !ok {
			return domain.ErrPendingNotFound
		}
		if err := item.Start(); err != nil {
			return err
		}

		started = *item
		s.details = domain.JSON{"pending_id": pendingID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.countPending("start")
	return &started, nil
}

// ResolvePending closes a pending item with a note. Resolution is final.
func (uc *RunUseCase) ResolvePending(ctx context.Context, runID, pendingID, note string) (*domain.PendingItem, error) {
	if strings.TrimSpace(note) == "" {
		return nil, domain.ErrResolutionNoteRequired
	}

	var resolved domain.PendingItem
	_, err := uc.mutate(ctx, runID, domain.AuditActionPendingResolve, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}
		item, ok := run.PendingItem(pendingID)
		if !ok {
			return domain.ErrPendingNotFound
		}
		if err := item.Resolve(note, s.now); err != nil {
			return err
		}

		resolved = *item
		s.details = domain.MarshalState(resolved)
		s.emit(domain.EventTypePendingResolved, pendingEvent(run.ID, resolved, s.actor))
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.countPending("resolve")
	return &resolved, nil
}

// PendingSummary groups the run's active pending items by area.
func (uc *RunUseCase) PendingSummary(ctx context.Context, runID string) ([]domain.AreaPending, error) {
	run, err := uc.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.PendingByArea(uc.settings.Areas), nil
}

func (uc *RunUseCase) countPending(action string) {
	if uc.metrics != nil {
		uc.metrics.PendingItems.WithLabelValues(action).Inc()
	}
}

func pendingEvent(runID string, item domain.PendingItem, actor string) domain.PendingEvent {
	return domain.PendingEvent{
		RunID:        runID,
		PendingID:    item.ID,
		SystemLineID: item.SystemLineID,
		Area:         string(item.Area),
		Status:       string(item.Status),
		ActorID:      actor,
	}
}
