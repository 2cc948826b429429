package domain

import "time"

// Event types
const (
	EventTypeRunCreated       = "run.created"
	EventTypeRunSystemUpdated = "run.system_updated"
	EventTypeRunClosed        = "run.closed"
	EventTypeRunReopened      = "run.reopened"
	EventTypePendingCreated   = "pending.created"
	EventTypePendingResolved  = "pending.resolved"
	EventTypeMessagePosted    = "run.message_posted"
)

// AggregateTypeRun is the only aggregate that emits events.
const AggregateTypeRun = "run"

// OutboxEvent is an event stored with the mutation that produced it and
// published later.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// RunEvent is the payload of run lifecycle events.
type RunEvent struct {
	RunID          string `json:"run_id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	ActorID        string `json:"actor_id"`
	Matched        int    `json:"matched"`
	OnlyExtract    int    `json:"only_extract"`
	SystemOverdue  int    `json:"system_overdue"`
	SystemDeferred int    `json:"system_deferred"`
}

// PendingEvent is the payload of pending item events.
type PendingEvent struct {
	RunID        string `json:"run_id"`
	PendingID    string `json:"pending_id"`
	SystemLineID string `json:"system_line_id"`
	Area         string `json:"area"`
	Status       string `json:"status"`
	ActorID      string `json:"actor_id"`
}

// MessageEvent is the payload of discussion events.
type MessageEvent struct {
	RunID     string `json:"run_id"`
	MessageID string `json:"message_id"`
	AuthorID  string `json:"author_id"`
}
