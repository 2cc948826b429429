package domain

import (
	"strings"
	"time"
)

// Area is a responsible team a pending item is routed to. The set of valid
// areas is configuration.
type Area string

// Areas is the configured list of areas.
type Areas []Area

// DefaultAreas is used when no areas are configured.
var DefaultAreas = Areas{"Dirección", "Pagos", "Administración", "Logística", "Tesorería"}

// Contains reports whether area is configured.
func (a Areas) Contains(area Area) bool {
	for _, known := range a {
		if known == area {
			return true
		}
	}
	return false
}

// PendingStatus is the lifecycle state of a pending item.
type PendingStatus string

const (
	PendingOpen       PendingStatus = "OPEN"
	PendingInProgress PendingStatus = "IN_PROGRESS"
	PendingResolved   PendingStatus = "RESOLVED"
)

// PendingItem tracks human follow-up on an unmatched system line.
type PendingItem struct {
	ID           string
	SystemLineID string
	Area         Area
	Status       PendingStatus
	Note         string
	CreatedByID  string
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// IsActive reports whether the item is not resolved yet.
func (p *PendingItem) IsActive() bool {
	return p.Status != PendingResolved
}

// Start moves an OPEN item to IN_PROGRESS.
func (p *PendingItem) Start() error {
	switch p.Status {
	case PendingOpen:
		p.Status = PendingInProgress
		return nil
	case PendingResolved:
		return ErrPendingAlreadyResolved
	default:
		return ErrPendingNotOpen
	}
}

// Resolve closes the item. Resolution is final.
func (p *PendingItem) Resolve(note string, at time.Time) error {
	if !p.IsActive() {
		return ErrPendingAlreadyResolved
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return ErrResolutionNoteRequired
	}

	p.Status = PendingResolved
	p.Note = note
	resolvedAt := at
	p.ResolvedAt = &resolvedAt
	return nil
}
