package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExtractLine is one bank statement transaction.
type ExtractLine struct {
	ID         string
	Position   int
	Date       *time.Time
	Concept    string
	Amount     decimal.Decimal
	CategoryID string
	Excluded   bool
}

// SystemLine is one internal ledger entry.
type SystemLine struct {
	ID          string
	Position    int
	IssueDate   *time.Time
	DueDate     *time.Time
	Description string
	Amount      decimal.Decimal
}

// DateBasis selects which system date drives window matching and the overdue cut.
type DateBasis string

const (
	DateBasisDue   DateBasis = "due"
	DateBasisIssue DateBasis = "issue"
)

// IsValid reports whether the basis is known.
func (b DateBasis) IsValid() bool {
	return b == DateBasisDue || b == DateBasisIssue
}

// RelevantDate returns the date the run compares against. It may be nil.
func (l SystemLine) RelevantDate(basis DateBasis) *time.Time {
	if basis == DateBasisIssue {
		return l.IssueDate
	}
	return l.DueDate
}

// BusinessKey identifies a system line independently of its id so that a
// re-uploaded ledger can be lined up with the previous one.
func (l SystemLine) BusinessKey() string {
	due := "-"
	if l.DueDate != nil {
		due = l.DueDate.Format(DateLayout)
	}
	return fmt.Sprintf("%s|%s|%s", NormalizeConcept(l.Description), l.Amount.StringFixed(2), due)
}

// DateLayout is the calendar date wire format.
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}
