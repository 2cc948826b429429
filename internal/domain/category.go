package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category groups extract lines by concept, e.g. bank fees or taxes.
type Category struct {
	ID        string
	Name      string
	Rules     []ExpenseRule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpenseRule matches a concept either as a literal substring or as a regular
// expression.
type ExpenseRule struct {
	ID            string
	CategoryID    string
	Pattern       string
	IsRegex       bool
	CaseSensitive bool
}

// Validate checks the category name and its rules. Regex syntax is not checked
// here; bad patterns simply never match.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name cannot be empty", ErrValidation)
	}
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("%w: rule %d has an empty pattern", ErrValidation, i)
		}
	}
	return nil
}
