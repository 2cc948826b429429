package usecase

import (
	"context"
	"errors"

	"github.com/iho/bankrecon/internal/domain"
)

// actorFromContext returns the id of the authenticated caller.
func actorFromContext(ctx context.Context) (string, error) {
	user, ok := domain.UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", domain.ErrUnauthorized
	}
	return user.ID, nil
}

func requestIDFromContext(ctx context.Context) string {
	return domain.RequestIDFromContext(ctx)
}

// ErrorKind names the kind of err for metrics labels.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return "unauthorized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}
