package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/bankrecon/internal/domain"
)

func TestAuditRepositoryCreateAssignsID(t *testing.T) {
	pool := newMockPool(t)
	log := &domain.AuditLog{
		UserID:       "alice",
		Action:       domain.AuditActionRunCreate,
		ResourceType: "run",
		ResourceID:   "run-1",
		Details:      domain.JSON{"title": "Enero"},
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    testNow,
	}

	pool.ExpectExec("INSERT INTO audit_logs").
		WithArgs(pgxmock.AnyArg(), "alice", "run.create", "run", "run-1", "", map[string]any{"title": "Enero"}, "success", "", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewAuditRepository(pool).Create(context.Background(), log); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if log.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	assertExpectations(t, pool)
}

func TestAuditRepositoryCreateTxUsesTransaction(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO audit_logs").WithArgs(anyArgs(10)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	repo := NewAuditRepository(pool)
	if err := repo.CreateTx(context.Background(), tx, &domain.AuditLog{ID: "a1", Status: domain.AuditStatusFailure}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	assertExpectations(t, pool)
}

func TestAuditRepositoryCreateError(t *testing.T) {
	pool := newMockPool(t)
	dbErr := errors.New("connection reset")
	pool.ExpectExec("INSERT INTO audit_logs").WithArgs(anyArgs(10)...).WillReturnError(dbErr)

	err := NewAuditRepository(pool).Create(context.Background(), &domain.AuditLog{ID: "a1"})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestAuditRepositoryListBuildsFilter(t *testing.T) {
	pool := newMockPool(t)
	columns := []string{"id", "user_id", "action", "resource_type", "resource_id", "request_id", "details", "status", "error_message", "created_at"}

	pool.ExpectQuery(`resource_type = \$1 AND resource_id = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("run", "run-1", 5, 10).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("a2", "alice", "run.close", "run", "run-1", "req-2", map[string]any(nil), "success", "", testNow).
			AddRow("a1", "bob", "run.set_match", "run", "run-1", "req-1", map[string]any{"reason": "amount"}, "failure", "amount mismatch", testNow))

	logs, err := NewAuditRepository(pool).List(context.Background(), domain.AuditFilter{
		ResourceType: "run",
		ResourceID:   "run-1",
		Limit:        5,
		Offset:       10,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assertExpectations(t, pool)

	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Action != domain.AuditActionRunClose || logs[0].Details != nil {
		t.Fatalf("unexpected first log: %+v", logs[0])
	}
	if logs[1].Status != domain.AuditStatusFailure || logs[1].Details["reason"] != "amount" {
		t.Fatalf("unexpected second log: %+v", logs[1])
	}
}
