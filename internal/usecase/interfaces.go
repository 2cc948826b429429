package usecase

import (
	"context"
	"time"

	"github.com/iho/bankrecon/internal/domain"
)

// RunRepository defines data access for reconciliation runs. Runs are loaded
// and saved as whole aggregates.
type RunRepository interface {
	Create(ctx context.Context, tx Transaction, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Run, error)
	// Update saves the aggregate if its version is unchanged and bumps it.
	Update(ctx context.Context, tx Transaction, run *domain.Run) error
	Delete(ctx context.Context, tx Transaction, id string) error
	// ListByMember returns run headers without lines, newest first.
	ListByMember(ctx context.Context, userID string, limit, offset int) ([]*domain.Run, error)
}

// CategoryRepository defines data access for categories and their rules.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	// List returns categories in declaration order.
	List(ctx context.Context) ([]domain.Category, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// RunLocker serializes mutations of one run.
type RunLocker interface {
	// Lock blocks until the run is held or ctx is done. The returned func
	// releases the lock.
	Lock(ctx context.Context, runID string) (func(), error)
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// Exporter renders a run into a downloadable workbook.
type Exporter interface {
	Export(ctx context.Context, run *domain.Run, areas domain.Areas) ([]byte, error)
}

// Notifier delivers a per-area pending summary.
type Notifier interface {
	Notify(ctx context.Context, n domain.AreaNotification) error
}
