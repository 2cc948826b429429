package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/adapter/http/handler"
	"github.com/iho/bankrecon/internal/adapter/http/middleware"
	"github.com/iho/bankrecon/internal/infrastructure/auth"
	"github.com/iho/bankrecon/internal/infrastructure/metrics"
	"github.com/iho/bankrecon/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	RunHandler      *handler.RunHandler
	PendingHandler  *handler.PendingHandler
	CategoryHandler *handler.CategoryHandler
	SheetHandler    *handler.SheetHandler
	HealthHandler   *handler.HealthHandler

	Logger zerolog.Logger

	// JWTManager enables bearer token authentication. When nil the caller is
	// taken from the X-User-ID header.
	JWTManager *auth.JWTManager

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter

	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Defaults to the Prometheus default gatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext(cfg.Logger))
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		} else {
			r.Use(middleware.HeaderAuth)
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Runs
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", cfg.RunHandler.Create)
			r.Get("/", cfg.RunHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.RunHandler.Get)
				r.Get("/summary", cfg.RunHandler.Summary)
				r.Patch("/", cfg.RunHandler.Update)
				r.Delete("/", cfg.RunHandler.Delete)
				r.Put("/system", cfg.RunHandler.UpdateSystem)
				r.Post("/close", cfg.RunHandler.Close)
				r.Post("/reopen", cfg.RunHandler.Reopen)
				r.Get("/export", cfg.RunHandler.Export)

				r.Post("/exclusions", cfg.RunHandler.ExcludeConcepts)
				r.Delete("/exclusions", cfg.RunHandler.RemoveExcludedConcept)
				r.Post("/exclusions/category", cfg.RunHandler.ExcludeByCategory)
				r.Put("/matches", cfg.RunHandler.SetMatch)

				r.Post("/members", cfg.RunHandler.SetMember)
				r.Delete("/members/{userId}", cfg.RunHandler.RemoveMember)
				r.Post("/messages", cfg.RunHandler.AddMessage)

				r.Post("/pending", cfg.PendingHandler.Create)
				r.Get("/pending/summary", cfg.PendingHandler.Summary)
				r.Post("/pending/{pendingId}/start", cfg.PendingHandler.Start)
				r.Post("/pending/{pendingId}/resolve", cfg.PendingHandler.Resolve)
				r.Post("/notify", cfg.PendingHandler.Notify)
			})
		})

		// Categories
		r.Route("/categories", func(r chi.Router) {
			r.Post("/", cfg.CategoryHandler.Create)
			r.Get("/", cfg.CategoryHandler.List)
			r.Get("/{id}", cfg.CategoryHandler.Get)
			r.Put("/{id}", cfg.CategoryHandler.Update)
			r.Delete("/{id}", cfg.CategoryHandler.Delete)
		})

		r.Post("/sheets/parse", cfg.SheetHandler.Parse)
	})

	return r
}
