package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/auth"
)

func TestAuthMiddleware(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := manager.Generate(&domain.User{ID: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	expired, err := auth.NewJWTManager("test-secret", -time.Hour).Generate(&domain.User{ID: "alice"})
	if err != nil {
		t.Fatalf("generate expired token: %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
		userID string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "alice"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "alice"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.User
			h := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = GetUserFromContext(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			if tt.userID == "" {
				if got != nil {
					t.Fatalf("handler must not run on auth failure")
				}
				return
			}
			if got == nil || got.ID != tt.userID || got.Email != "alice@example.com" {
				t.Fatalf("unexpected user %+v", got)
			}
		})
	}
}

func TestHeaderAuth(t *testing.T) {
	var got *domain.User
	h := HeaderAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rr.Code)
	}

	req.Header.Set(UserIDHeader, " bob ")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || got == nil || got.ID != "bob" {
		t.Fatalf("expected bob to be authenticated, got %d %+v", rr.Code, got)
	}
}

func TestRequestContextBindsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	h := chimiddleware.RequestID(RequestContext(base)(HeaderAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if domain.RequestIDFromContext(r.Context()) == "" {
			t.Fatalf("expected request id in context")
		}
		zerolog.Ctx(r.Context()).Info().Msg("inside")
	}))))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set(UserIDHeader, "carol")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	line := buf.String()
	if !strings.Contains(line, `"request_id"`) || !strings.Contains(line, `"user_id":"carol"`) {
		t.Fatalf("expected request and user ids in log line, got %s", line)
	}
	if rr.Header().Get(chimiddleware.RequestIDHeader) == "" {
		t.Fatalf("expected request id response header")
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"internal"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
