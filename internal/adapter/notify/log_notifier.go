// Package notify delivers per-area pending summaries.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/domain"
)

// ErrNoRecipient is returned for an area without a configured address.
var ErrNoRecipient = errors.New("area has no recipient")

// LogNotifier implements usecase.Notifier by writing each notification to a
// structured log, where a mail relay or operator can pick it up.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Notify logs the rendered summary.
func (n *LogNotifier) Notify(ctx context.Context, msg domain.AreaNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return fmt.Errorf("%w: %s", ErrNoRecipient, msg.Area)
	}

	n.logger.Info().
		Str("run_id", msg.RunID).
		Str("area", string(msg.Area)).
		Str("recipient", msg.Recipient).
		Str("subject", Subject(msg)).
		Int("items", len(msg.Lines)).
		Str("body", Body(msg)).
		Msg("area notification")
	return nil
}

// Subject is the notification title.
func Subject(msg domain.AreaNotification) string {
	title := msg.RunTitle
	if msg.BankName != "" {
		title = fmt.Sprintf("%s (%s)", title, msg.BankName)
	}
	return fmt.Sprintf("Pendientes de conciliación - %s - %s", msg.Area, title)
}

// Body renders the message followed by one line per pending item.
func Body(msg domain.AreaNotification) string {
	var b strings.Builder
	if m := strings.TrimSpace(msg.Message); m != "" {
		b.WriteString(m)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "%d pendiente(s) para %s:\n", len(msg.Lines), msg.Area)
	for _, l := range msg.Lines {
		due := l.DueDate
		if due == "" {
			due = "sin fecha"
		}
		fmt.Fprintf(&b, "- %s | %s | %s | %s", due, l.Description, l.Amount.StringFixed(2), l.Item.Status)
		if l.Item.Note != "" {
			fmt.Fprintf(&b, " | %s", l.Item.Note)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
