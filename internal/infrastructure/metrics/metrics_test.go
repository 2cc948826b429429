package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistryRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegistry(registry)

	if m.RunsCreated == nil || m.HTTPRequests == nil || m.MatchesFound == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.RunsCreated.Inc()
	m.MatchesFound.WithLabelValues("exact").Add(3)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if got := testutil.ToFloat64(m.RunsCreated); got != 1 {
		t.Fatalf("expected runs created 1, got %v", got)
	}

	if got := testutil.ToFloat64(m.MatchesFound.WithLabelValues("exact")); got != 3 {
		t.Fatalf("expected 3 exact matches, got %v", got)
	}
}

func TestNewWithRegistryIsolatesRegistries(t *testing.T) {
	// Two instances on separate registries must not panic on duplicate registration.
	_ = NewWithRegistry(prometheus.NewRegistry())
	_ = NewWithRegistry(prometheus.NewRegistry())
}
