package domain

import "strings"

// RawRow is one parsed spreadsheet row keyed by column header. Values are
// whatever the parser produced: strings, numbers, booleans or nil.
type RawRow map[string]any

// AmountMode selects how a row's amount is read.
type AmountMode string

const (
	// AmountModeSingle reads a signed amount from one column.
	AmountModeSingle AmountMode = "single"
	// AmountModeDebitCredit reads debit and credit columns; amount = debit - credit.
	AmountModeDebitCredit AmountMode = "debe-haber"
)

// AmountColumns describes where the amount lives in a row.
type AmountColumns struct {
	Mode      AmountMode
	AmountCol string
	DebitCol  string
	CreditCol string
}

// Validate checks that the columns required by the mode are set.
func (c AmountColumns) Validate() error {
	switch c.Mode {
	case AmountModeSingle, "":
		if strings.TrimSpace(c.AmountCol) == "" {
			return missingColumn("amountCol")
		}
	case AmountModeDebitCredit:
		if strings.TrimSpace(c.DebitCol) == "" {
			return missingColumn("debeCol")
		}
		if strings.TrimSpace(c.CreditCol) == "" {
			return missingColumn("haberCol")
		}
	default:
		return ErrInvalidAmountMode
	}
	return nil
}

// ExtractMapping maps bank statement columns.
type ExtractMapping struct {
	DateCol    string
	ConceptCol string
	Amount     AmountColumns
}

// Validate checks the extract mapping.
func (m ExtractMapping) Validate() error {
	if strings.TrimSpace(m.DateCol) == "" {
		return missingColumn("dateCol")
	}
	return m.Amount.Validate()
}

// SystemMapping maps internal ledger columns.
type SystemMapping struct {
	IssueDateCol   string
	DueDateCol     string
	DescriptionCol string
	Amount         AmountColumns
}

// Validate checks the system mapping. At least one date column is required.
func (m SystemMapping) Validate() error {
	if strings.TrimSpace(m.IssueDateCol) == "" && strings.TrimSpace(m.DueDateCol) == "" {
		return missingColumn("issueDateCol or dueDateCol")
	}
	return m.Amount.Validate()
}

func missingColumn(name string) error {
	return &MappingError{Column: name}
}

// MappingError reports a required mapping column that was left empty.
type MappingError struct {
	Column string
}

func (e *MappingError) Error() string {
	return ErrMissingMapping.Error() + ": " + e.Column
}

func (e *MappingError) Unwrap() error {
	return ErrMissingMapping
}
