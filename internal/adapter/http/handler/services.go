package handler

import (
	"context"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

// RunService is the part of the run use case the HTTP layer calls.
type RunService interface {
	CreateRun(ctx context.Context, input usecase.CreateRunInput) (*usecase.RunResult, error)
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	GetSummary(ctx context.Context, id string) (domain.RunSummary, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.Run, error)
	UpdateRun(ctx context.Context, id string, input usecase.UpdateRunInput) (*domain.Run, error)
	CloseRun(ctx context.Context, id string) (*domain.Run, error)
	ReopenRun(ctx context.Context, id string) (*domain.Run, error)
	DeleteRun(ctx context.Context, id string) error
	UpdateSystemData(ctx context.Context, id string, rows []domain.RawRow, mapping domain.SystemMapping) (*usecase.RunResult, error)

	ExcludeConcepts(ctx context.Context, runID string, concepts []string) (*domain.Run, error)
	RemoveExcludedConcept(ctx context.Context, runID, concept string) (*domain.Run, error)
	ExcludeByCategory(ctx context.Context, runID, categoryID string) (*domain.Run, error)
	SetMatch(ctx context.Context, runID, systemLineID string, extractLineIDs []string) (*domain.Run, error)

	SetMember(ctx context.Context, runID, userID string, role domain.MemberRole) (*domain.Run, error)
	RemoveMember(ctx context.Context, runID, userID string) (*domain.Run, error)
	AddMessage(ctx context.Context, runID, body string) (*domain.Message, error)

	CreatePending(ctx context.Context, runID string, input usecase.CreatePendingInput) (*domain.PendingItem, error)
	StartPending(ctx context.Context, runID, pendingID string) (*domain.PendingItem, error)
	ResolvePending(ctx context.Context, runID, pendingID, note string) (*domain.PendingItem, error)
	PendingSummary(ctx context.Context, runID string) ([]domain.AreaPending, error)
	Notify(ctx context.Context, runID string, input usecase.NotifyInput) ([]usecase.NotifyResult, error)
	ExportRun(ctx context.Context, runID string) ([]byte, string, error)
}

// CategoryService is the part of the category use case the HTTP layer calls.
type CategoryService interface {
	CreateCategory(ctx context.Context, input usecase.CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id string, input usecase.CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

var (
	_ RunService      = (*usecase.RunUseCase)(nil)
	_ CategoryService = (*usecase.CategoryUseCase)(nil)
)
