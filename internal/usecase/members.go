package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/iho/bankrecon/internal/domain"
)

// SetMember shares the run with a user or changes their role. Owner only.
func (uc *RunUseCase) SetMember(ctx context.Context, runID, userID string, role domain.MemberRole) (*domain.Run, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	return uc.mutate(ctx, runID, domain.AuditActionMemberSet, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeOwner(s.actor); err != nil {
			return err
		}
		if err := run.SetMember(userID, role, s.now); err != nil {
			return err
		}
		s.details = domain.JSON{"user_id": userID, "role": role}
		return nil
	})
}

// RemoveMember revokes a user's access. Owner only; the creator stays.
func (uc *RunUseCase) RemoveMember(ctx context.Context, runID, userID string) (*domain.Run, error) {
	return uc.mutate(ctx, runID, domain.AuditActionMemberRemove, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeOwner(s.actor); err != nil {
			return err
		}
		if err := run.RemoveMember(userID); err != nil {
			return err
		}
		s.details = domain.JSON{"user_id": userID}
		return nil
	})
}
