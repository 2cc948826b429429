package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultRunCacheTTL is how long a run detail stays cached
	DefaultRunCacheTTL = 5 * time.Minute

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// systemActor is recorded when no caller is attached to the context
	systemActor = "system"

	runCacheKeyPrefix = "run:"
)
