package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchEpsilon is the absolute amount tolerance for a match.
var MatchEpsilon = decimal.New(2, -2)

// WithinEpsilon reports whether |a - b| <= MatchEpsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MatchEpsilon)
}

// Match pairs one system line with the extract lines that settle it.
type Match struct {
	SystemLineID   string
	ExtractLineIDs []string
	DeltaDays      int
	Manual         bool
}

// UnmatchedStatus classifies an unmatched system line against the cut date.
type UnmatchedStatus string

const (
	UnmatchedOverdue  UnmatchedStatus = "OVERDUE"
	UnmatchedDeferred UnmatchedStatus = "DEFERRED"
)

// UnmatchedSystem is a system line without a match.
type UnmatchedSystem struct {
	SystemLineID string
	Status       UnmatchedStatus
}

// ClassifyUnmatched is OVERDUE when the relevant date is at or before the cut
// date and DEFERRED otherwise, including when the date is unknown.
func ClassifyUnmatched(relevant *time.Time, cutDate time.Time) UnmatchedStatus {
	if relevant == nil {
		return UnmatchedDeferred
	}
	if !Day(*relevant).After(Day(cutDate)) {
		return UnmatchedOverdue
	}
	return UnmatchedDeferred
}
