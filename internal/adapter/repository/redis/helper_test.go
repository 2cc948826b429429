package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"

	"github.com/iho/bankrecon/internal/domain"
)

// newTestRedisClient starts an in-process Redis and a client bound to it.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func sampleEvent(id, eventType string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            id,
		AggregateID:   "run-1",
		AggregateType: domain.AggregateTypeRun,
		EventType:     eventType,
		Payload:       map[string]any{"area": "Pagos"},
		CreatedAt:     time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC),
	}
}
