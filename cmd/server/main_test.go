package main

import (
	"context"
	"strings"
	"testing"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/config"
)

func TestRunSettings(t *testing.T) {
	cfg := &config.Config{
		Areas:               []string{"Pagos", "Tesorería"},
		AreaRecipients:      map[string]string{"Pagos": "pagos@example.com"},
		DefaultWindowDays:   5,
		DefaultDateBasis:    "issue",
		MatchMaxCombination: 3,
		MatchMaxCandidates:  12,
	}

	s := runSettings(cfg)

	if len(s.Areas) != 2 || s.Areas[1] != domain.Area("Tesorería") {
		t.Fatalf("unexpected areas %v", s.Areas)
	}
	if s.Recipients[domain.Area("Pagos")] != "pagos@example.com" {
		t.Fatalf("unexpected recipients %v", s.Recipients)
	}
	if s.DefaultWindowDays != 5 || s.DefaultDateBasis != domain.DateBasisIssue {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if s.Limits.MaxCombination != 3 || s.Limits.MaxCandidates != 12 {
		t.Fatalf("unexpected limits %+v", s.Limits)
	}
}

func TestOpenStorage_Memory(t *testing.T) {
	store, err := openStorage(context.Background(), &config.Config{StorageDriver: config.StorageMemory})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer store.close()

	if store.txManager == nil || store.runs == nil || store.categories == nil || store.outbox == nil || store.audit == nil {
		t.Fatalf("expected every repository to be set: %+v", store)
	}
	if store.retrier != nil || len(store.checks) != 0 {
		t.Fatalf("memory storage should not retry or report health checks")
	}
}

func TestMigrate_UnknownDirection(t *testing.T) {
	err := migrate(&config.Config{}, []string{"sideways"})
	if err == nil || !strings.Contains(err.Error(), "sideways") {
		t.Fatalf("expected unknown direction error, got %v", err)
	}
}
