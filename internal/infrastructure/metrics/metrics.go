package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Run metrics
	RunsCreated       prometheus.Counter
	RunOperations     *prometheus.CounterVec
	RunErrors         *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram

	// Matching metrics
	MatchesFound        *prometheus.CounterVec
	CombinationsChecked prometheus.Histogram
	DroppedOverrides    prometheus.Counter

	// Pending item metrics
	PendingItems      *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Redis metrics
	CacheRequests *prometheus.CounterVec
	LockWaits     prometheus.Histogram

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Run metrics
		RunsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankrecon_runs_created_total",
			Help: "Total number of reconciliation runs created",
		}),
		RunOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_run_operations_total",
				Help: "Total run mutations by operation",
			},
			[]string{"operation"},
		),
		RunErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_run_errors_total",
				Help: "Total failed run mutations by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankrecon_recompute_duration_seconds",
			Help:    "Duration of match recomputation",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),

		// Matching metrics
		MatchesFound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_matches_found_total",
				Help: "Matches produced by recomputation, by kind",
			},
			[]string{"kind"},
		),
		CombinationsChecked: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankrecon_combinations_checked",
			Help:    "Candidate combinations evaluated per recomputation",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		}),
		DroppedOverrides: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankrecon_dropped_overrides_total",
			Help: "Manual matches dropped because they became invalid",
		}),

		// Pending item metrics
		PendingItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_pending_items_total",
				Help: "Pending item transitions by action",
			},
			[]string{"action"},
		),
		NotificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_notifications_sent_total",
				Help: "Area notifications sent",
			},
			[]string{"area"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankrecon_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bankrecon_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Redis metrics
		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_cache_requests_total",
				Help: "Run cache lookups by result",
			},
			[]string{"result"},
		),
		LockWaits: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bankrecon_run_lock_wait_seconds",
			Help:    "Time spent waiting for a run lock",
			Buckets: prometheus.DefBuckets,
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"client"},
		),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_audit_logs_created_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankrecon_events_published_total",
				Help: "Outbox events published by type",
			},
			[]string{"event_type"},
		),
	}
}
