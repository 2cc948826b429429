package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/logger"
)

// RequestContext copies the chi request id into the domain context and binds
// a request-scoped logger for zerolog.Ctx. It must run after chi's RequestID.
func RequestContext(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := chimiddleware.GetReqID(ctx); id != "" {
				ctx = domain.ContextWithRequestID(ctx, id)
				w.Header().Set(chimiddleware.RequestIDHeader, id)
			}
			ctx = logger.WithContext(ctx, base)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
