package usecase

import (
	"context"

	"github.com/iho/bankrecon/internal/domain"
)

// AddMessage posts to the run's discussion thread. Any member may post, and
// the thread stays open after the run is closed.
func (uc *RunUseCase) AddMessage(ctx context.Context, runID, body string) (*domain.Message, error) {
	body, err := domain.CleanMessageBody(body)
	if err != nil {
		return nil, err
	}

	var posted domain.Message
	_, err = uc.mutate(ctx, runID, domain.AuditActionMessagePost, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeRead(s.actor); err != nil {
			return err
		}

		posted = domain.Message{
			ID:        uc.idGen.Generate(),
			Body:      body,
			AuthorID:  s.actor,
			CreatedAt: s.now,
		}
		run.Messages = append(run.Messages, posted)

		s.details = domain.JSON{"message_id": posted.ID}
		s.emit(domain.EventTypeMessagePosted, domain.MessageEvent{
			RunID:     run.ID,
			MessageID: posted.ID,
			AuthorID:  s.actor,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &posted, nil
}
