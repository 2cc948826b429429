package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/auth"
)

// UserIDHeader carries the caller id when token authentication is disabled.
const UserIDHeader = "X-User-ID"

// AuthMiddleware creates an authentication middleware that requires a valid
// bearer token.
func AuthMiddleware(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := jwtManager.Verify(parts[1])
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, domain.ErrExpiredToken) {
					msg = "token has expired"
				}
				writeUnauthorized(w, msg)
				return
			}

			next.ServeHTTP(w, withUser(r, claims.User()))
		})
	}
}

// HeaderAuth trusts the X-User-ID header. It is meant for deployments behind
// an authenticating proxy and for local use.
func HeaderAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			writeUnauthorized(w, "missing "+UserIDHeader+" header")
			return
		}

		next.ServeHTTP(w, withUser(r, &domain.User{ID: id}))
	})
}

// GetUserFromContext extracts the authenticated user from context
func GetUserFromContext(r *http.Request) (*domain.User, bool) {
	return domain.UserFromContext(r.Context())
}

// withUser attaches the caller and rebinds the request logger so log lines
// carry the user id.
func withUser(r *http.Request, user *domain.User) *http.Request {
	ctx := domain.ContextWithUser(r.Context(), user)
	l := zerolog.Ctx(ctx).With().Str("user_id", user.ID).Logger()
	return r.WithContext(l.WithContext(ctx))
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
