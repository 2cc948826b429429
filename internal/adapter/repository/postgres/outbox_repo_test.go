package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/bankrecon/internal/domain"
)

var outboxTestColumns = []string{"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published", "published_at"}

func TestOutboxRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO outbox_events").
		WithArgs("evt-1", "run-1", "run", "run.closed", map[string]any{}, testNow, false, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := NewOutboxRepository(pool).Create(context.Background(), tx, &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "run-1",
		AggregateType: domain.AggregateTypeRun,
		EventType:     domain.EventTypeRunClosed,
		CreatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	assertExpectations(t, pool)
}

func TestOutboxRepositoryGetUnpublished(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("WHERE NOT published").WithArgs(50).WillReturnRows(
		pgxmock.NewRows(outboxTestColumns).
			AddRow("evt-1", "run-1", "run", "run.created", map[string]any{"run_id": "run-1"}, testNow, false, (*time.Time)(nil)),
	)

	events, err := NewOutboxRepository(pool).GetUnpublished(context.Background(), 50)
	if err != nil {
		t.Fatalf("get unpublished failed: %v", err)
	}
	if len(events) != 1 || events[0].Payload["run_id"] != "run-1" || events[0].PublishedAt != nil {
		t.Fatalf("unexpected events: %+v", events)
	}
	assertExpectations(t, pool)
}

func TestOutboxRepositoryMarkAndPrune(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOutboxRepository(pool)
	cutoff := testNow.Add(-24 * time.Hour)

	pool.ExpectExec("UPDATE outbox_events SET published = TRUE").WithArgs("evt-1", testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("DELETE FROM outbox_events WHERE published").WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	if err := repo.MarkPublished(context.Background(), "evt-1", testNow); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	if err := repo.DeletePublished(context.Background(), cutoff); err != nil {
		t.Fatalf("delete published failed: %v", err)
	}
	assertExpectations(t, pool)
}

func TestOutboxRepositoryGetByAggregate(t *testing.T) {
	pool := newMockPool(t)
	published := testNow.Add(time.Minute)

	pool.ExpectQuery("WHERE aggregate_type = \\$1 AND aggregate_id = \\$2").WithArgs("run", "run-1", 20, 0).WillReturnRows(
		pgxmock.NewRows(outboxTestColumns).
			AddRow("evt-1", "run-1", "run", "run.created", map[string]any{}, testNow, true, &published).
			AddRow("evt-2", "run-1", "run", "pending.created", map[string]any{}, testNow, false, (*time.Time)(nil)),
	)

	events, err := NewOutboxRepository(pool).GetByAggregate(context.Background(), "run", "run-1", 20, 0)
	if err != nil {
		t.Fatalf("get by aggregate failed: %v", err)
	}
	if len(events) != 2 || events[0].EventType != "run.created" || !events[0].Published || events[0].PublishedAt == nil {
		t.Fatalf("unexpected events: %+v", events)
	}
	assertExpectations(t, pool)
}
