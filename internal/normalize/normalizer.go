// Package normalize turns raw spreadsheet rows plus a column mapping into typed
// extract and system lines.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankrecon/internal/domain"
)

// Warning describes a row that was dropped or partially read. Warnings never
// abort normalization.
type Warning struct {
	Row    int
	Column string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %s (%s)", w.Row, w.Reason, w.Column)
}

// Warning reasons
const (
	ReasonEmptyAmount        = "empty amount"
	ReasonUnparseableAmount  = "unparseable amount"
	ReasonZeroAmount         = "zero amount"
	ReasonUnparseableDate    = "unparseable date"
	ReasonUnparseableDebit   = "unparseable debit"
	ReasonUnparseableCredit  = "unparseable credit"
	ReasonMissingDebitCredit = "debit and credit both empty"
)

// IDFunc issues a new line id.
type IDFunc func() string

// ExtractResult is the outcome of normalizing bank statement rows.
type ExtractResult struct {
	Lines    []domain.ExtractLine
	Warnings []Warning
}

// SystemResult is the outcome of normalizing internal ledger rows.
type SystemResult struct {
	Lines    []domain.SystemLine
	Warnings []Warning
}

// Extract normalizes bank statement rows. Output keeps input order.
func Extract(rows []domain.RawRow, mapping domain.ExtractMapping, newID IDFunc) (ExtractResult, error) {
	if len(rows) == 0 {
		return ExtractResult{}, domain.ErrEmptyRows
	}
	if err := mapping.Validate(); err != nil {
		return ExtractResult{}, err
	}

	result := ExtractResult{Lines: make([]domain.ExtractLine, 0, len(rows))}
	for i, row := range rows {
		amount, warns, ok := readAmount(i, row, mapping.Amount)
		result.Warnings = append(result.Warnings, warns...)
		if !ok {
			continue
		}

		date, warn := readDate(i, row, mapping.DateCol)
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
		}

		result.Lines = append(result.Lines, domain.ExtractLine{
			ID:       newID(),
			Position: len(result.Lines),
			Date:     date,
			Concept:  domain.CleanConcept(Text(cell(row, mapping.ConceptCol))),
			Amount:   amount,
		})
	}

	return result, nil
}

// System normalizes internal ledger rows. Output keeps input order.
func System(rows []domain.RawRow, mapping domain.SystemMapping, newID IDFunc) (SystemResult, error) {
	if len(rows) == 0 {
		return SystemResult{}, domain.ErrEmptyRows
	}
	if err := mapping.Validate(); err != nil {
		return SystemResult{}, err
	}

	result := SystemResult{Lines: make([]domain.SystemLine, 0, len(rows))}
	for i, row := range rows {
		amount, warns, ok := readAmount(i, row, mapping.Amount)
		result.Warnings = append(result.Warnings, warns...)
		if !ok {
			continue
		}

		issue, warn := readDate(i, row, mapping.IssueDateCol)
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
		}
		due, warn := readDate(i, row, mapping.DueDateCol)
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
		}

		result.Lines = append(result.Lines, domain.SystemLine{
			ID:          newID(),
			Position:    len(result.Lines),
			IssueDate:   issue,
			DueDate:     due,
			Description: domain.CleanConcept(Text(cell(row, mapping.DescriptionCol))),
			Amount:      amount,
		})
	}

	return result, nil
}

func cell(row domain.RawRow, col string) any {
	if col == "" {
		return nil
	}
	return row[col]
}

func readDate(i int, row domain.RawRow, col string) (*time.Time, *Warning) {
	v := cell(row, col)
	if isBlank(v) {
		return nil, nil
	}
	t, ok := ParseDate(v)
	if !ok {
		return nil, &Warning{Row: i, Column: col, Reason: ReasonUnparseableDate}
	}
	return &t, nil
}

// readAmount applies the amount mode. Debit is positive, credit negative.
func readAmount(i int, row domain.RawRow, cols domain.AmountColumns) (decimal.Decimal, []Warning, bool) {
	if cols.Mode == domain.AmountModeDebitCredit {
		return readDebitCredit(i, row, cols)
	}

	v := cell(row, cols.AmountCol)
	if isBlank(v) {
		return decimal.Zero, []Warning{{Row: i, Column: cols.AmountCol, Reason: ReasonEmptyAmount}}, false
	}
	amount, ok := ParseAmount(v)
	if !ok {
		return decimal.Zero, []Warning{{Row: i, Column: cols.AmountCol, Reason: ReasonUnparseableAmount}}, false
	}
	if amount.IsZero() {
		return decimal.Zero, []Warning{{Row: i, Column: cols.AmountCol, Reason: ReasonZeroAmount}}, false
	}
	return amount, nil, true
}

func readDebitCredit(i int, row domain.RawRow, cols domain.AmountColumns) (decimal.Decimal, []Warning, bool) {
	var warns []Warning
	present := false

	side := func(col, reason string) decimal.Decimal {
		v := cell(row, col)
		if isBlank(v) {
			return decimal.Zero
		}
		present = true
		d, ok := ParseAmount(v)
		if !ok {
			warns = append(warns, Warning{Row: i, Column: col, Reason: reason})
			return decimal.Zero
		}
		return d
	}

	debit := side(cols.DebitCol, ReasonUnparseableDebit)
	credit := side(cols.CreditCol, ReasonUnparseableCredit)

	amount := debit.Sub(credit)
	if amount.IsZero() {
		reason := ReasonZeroAmount
		if !present {
			reason = ReasonMissingDebitCredit
		}
		warns = append(warns, Warning{Row: i, Column: cols.DebitCol + "/" + cols.CreditCol, Reason: reason})
		return decimal.Zero, warns, false
	}
	return amount, warns, true
}
