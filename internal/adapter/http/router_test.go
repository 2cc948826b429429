package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/adapter/http/handler"
	apimiddleware "github.com/iho/bankrecon/internal/adapter/http/middleware"
	"github.com/iho/bankrecon/internal/adapter/repository/memory"
	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/auth"
	"github.com/iho/bankrecon/internal/infrastructure/metrics"
	"github.com/iho/bankrecon/internal/usecase"
)

func TestNewRouter_RateLimiterApplied(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = apimiddleware.NewRateLimiter(0.0001, 1)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/categories/", nil)
		req.Header.Set(apimiddleware.UserIDHeader, "alice")
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit on second request, got %d", code)
	}
}

func TestNewRouter_UsesIdempotencyStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"name":"Comisiones","rules":[{"pattern":"comision"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.UserIDHeader, "alice")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.checkCalled || !store.updateCalled {
		t.Fatalf("expected idempotency store to be used")
	}
	if !strings.HasPrefix(store.lastKey, "alice:POST:") {
		t.Fatalf("expected key scoped to the caller, got %q", store.lastKey)
	}
}

func TestNewRouter_RequiresCaller(t *testing.T) {
	router := NewRouter(newRouterConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a caller, got %d", rec.Code)
	}
}

func TestNewRouter_JWTAuthentication(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.JWTManager = manager
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/", nil)
	req.Header.Set(apimiddleware.UserIDHeader, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected header auth to be ignored when JWT is enabled, got %d", rec.Code)
	}

	token, err := manager.Generate(&domain.User{ID: "alice"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.Metrics = metrics.NewWithRegistry(reg)
		cfg.Gatherer = reg
	}))

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bankrecon_http_requests_total") {
		t.Fatalf("expected HTTP metrics to be exported")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/runs/",
		"GET /api/v1/runs/",
		"GET /api/v1/runs/{id}/",
		"GET /api/v1/runs/{id}/summary",
		"PATCH /api/v1/runs/{id}/",
		"DELETE /api/v1/runs/{id}/",
		"PUT /api/v1/runs/{id}/system",
		"POST /api/v1/runs/{id}/close",
		"POST /api/v1/runs/{id}/reopen",
		"POST /api/v1/runs/{id}/exclusions",
		"DELETE /api/v1/runs/{id}/exclusions",
		"POST /api/v1/runs/{id}/exclusions/category",
		"PUT /api/v1/runs/{id}/matches",
		"POST /api/v1/runs/{id}/pending",
		"POST /api/v1/runs/{id}/pending/{pendingId}/start",
		"POST /api/v1/runs/{id}/pending/{pendingId}/resolve",
		"GET /api/v1/runs/{id}/pending/summary",
		"POST /api/v1/runs/{id}/notify",
		"GET /api/v1/runs/{id}/export",
		"POST /api/v1/runs/{id}/members",
		"DELETE /api/v1/runs/{id}/members/{userId}",
		"POST /api/v1/runs/{id}/messages",
		"GET /api/v1/categories/",
		"PUT /api/v1/categories/{id}",
		"POST /api/v1/sheets/parse",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

type seqIDs struct{ n int }

func (s *seqIDs) Generate() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	store := memory.NewStore()
	audit := memory.NewAuditRepository(store)
	categories := memory.NewCategoryRepository(store)
	runs := usecase.NewRunUseCase(
		memory.NewTxManager(store),
		memory.NewRunRepository(store),
		categories,
		memory.NewOutboxRepository(store),
		audit,
		&seqIDs{},
		usecase.RunSettings{},
	)

	cfg := RouterConfig{
		RunHandler:      handler.NewRunHandler(runs),
		PendingHandler:  handler.NewPendingHandler(runs),
		CategoryHandler: handler.NewCategoryHandler(usecase.NewCategoryUseCase(categories, audit, &seqIDs{})),
		SheetHandler:    handler.NewSheetHandler(0),
		HealthHandler:   handler.NewHealthHandler(),
		Logger:          zerolog.Nop(),
		Gatherer:        prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubIdempotencyStore struct {
	checkCalled  bool
	updateCalled bool
	lastKey      string
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	s.lastKey = key
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updateCalled = true
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}
