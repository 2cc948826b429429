package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

// RunRepository implements usecase.RunRepository.
type RunRepository struct {
	store *Store
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(store *Store) *RunRepository {
	return &RunRepository{store: store}
}

// Create stages a new run.
func (r *RunRepository) Create(ctx context.Context, tx usecase.Transaction, run *domain.Run) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	snapshot := run.Clone()
	return mtx.stage(op{
		check: func() error {
			if _, ok := r.store.runs[snapshot.ID]; ok {
				return fmt.Errorf("%w: run %s already exists", domain.ErrConflict, snapshot.ID)
			}
			return nil
		},
		apply: func() { r.store.runs[snapshot.ID] = snapshot },
	})
}

// GetByID returns a copy of the run.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	run, ok := r.store.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run.Clone(), nil
}

// GetByIDForUpdate returns a copy of the run. Exclusion is left to the run
// locker; Update still checks the version.
func (r *RunRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Run, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update stages the aggregate and bumps its version.
func (r *RunRepository) Update(ctx context.Context, tx usecase.Transaction, run *domain.Run) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	expected := run.Version
	run.Version++
	snapshot := run.Clone()

	return mtx.stage(op{
		check: func() error {
			current, ok := r.store.runs[snapshot.ID]
			if !ok {
				return domain.ErrRunNotFound
			}
			if current.Version != expected {
				return domain.ErrRunModified
			}
			return nil
		},
		apply: func() { r.store.runs[snapshot.ID] = snapshot },
	})
}

// Delete stages the removal of a run.
func (r *RunRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	return mtx.stage(op{
		check: func() error {
			if _, ok := r.store.runs[id]; !ok {
				return domain.ErrRunNotFound
			}
			return nil
		},
		apply: func() { delete(r.store.runs, id) },
	})
}

// ListByMember returns run headers the user is a member of, newest first.
func (r *RunRepository) ListByMember(ctx context.Context, userID string, limit, offset int) ([]*domain.Run, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var runs []*domain.Run
	for _, run := range r.store.runs {
		if _, ok := run.RoleOf(userID); !ok {
			continue
		}
		header := run.Clone()
		header.ExtractLines = nil
		header.SystemLines = nil
		header.Matches = nil
		header.Messages = nil
		runs = append(runs, header)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})

	if offset >= len(runs) {
		return []*domain.Run{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}
