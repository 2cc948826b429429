package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestTxManager_BeginCommit(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectCommit()

	tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pgxTx, err := unwrapTx(tx)
	if err != nil || pgxTx == nil {
		t.Fatalf("expected the pgx transaction to unwrap, got %v", err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTxManager_BeginError(t *testing.T) {
	mockPool := newMockPool(t)
	mockErr := errors.New("connection reset")
	mockPool.ExpectBegin().WillReturnError(mockErr)

	tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
	if !errors.Is(err, mockErr) {
		t.Fatalf("expected wrapped begin error, got err=%v tx=%v", err, tx)
	}
}

func TestTx_Rollback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"rolled back", nil, false},
		{"already finished", pgx.ErrTxClosed, false},
		{"driver failure", errors.New("broken pipe"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPool := newMockPool(t)
			mockPool.ExpectBegin()
			rollback := mockPool.ExpectRollback()
			if tt.err != nil {
				rollback.WillReturnError(tt.err)
			}

			tx, err := newTxManagerWithPool(mockPool).Begin(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			err = tx.Rollback(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("rollback error = %v, wantErr %v", err, tt.wantErr)
			}
			assertExpectations(t, mockPool)
		})
	}
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func TestUnwrapTx_RejectsForeignTransaction(t *testing.T) {
	if _, err := unwrapTx(foreignTx{}); err == nil {
		t.Fatal("expected an error for a transaction from another driver")
	}
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
