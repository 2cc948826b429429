// Package memory keeps runs, categories, audit logs and outbox events in
// process memory. Writes are staged on a transaction and applied on commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

// ErrTxDone is returned when a committed or rolled back transaction is used.
var ErrTxDone = errors.New("transaction already finished")

// Store is the shared state behind the memory repositories.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]*domain.Run
	categories []domain.Category
	outbox     []*domain.OutboxEvent
	audit      []*domain.AuditLog
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*domain.Run)}
}

type op struct {
	check func() error
	apply func()
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// Tx stages writes until Commit.
type Tx struct {
	store *Store
	ops   []op
	done  bool
}

func (t *Tx) stage(o op) error {
	if t.done {
		return ErrTxDone
	}
	t.ops = append(t.ops, o)
	return nil
}

// Commit checks every staged write and applies them all, or none.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, o := range t.ops {
		if o.check == nil {
			continue
		}
		if err := o.check(); err != nil {
			return err
		}
	}
	for _, o := range t.ops {
		o.apply()
	}

	t.done = true
	t.ops = nil
	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory: foreign transaction")
	}
	return mtx, nil
}
