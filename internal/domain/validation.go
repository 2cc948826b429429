package domain

import (
	"fmt"
	"strings"
)

// Validation constants
const (
	MaxTitleLength    = 255
	MaxBankNameLength = 255
	MaxWindowDays     = 365
	MaxConceptLength  = 500
)

// ValidateTitle validates a run title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)

	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}

	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}

	return nil
}

// ValidateBankName validates an optional bank name.
func ValidateBankName(name string) error {
	if len(strings.TrimSpace(name)) > MaxBankNameLength {
		return fmt.Errorf("%w: bank name exceeds %d characters", ErrValidation, MaxBankNameLength)
	}
	return nil
}

// ValidateWindowDays validates the matching window.
func ValidateWindowDays(days int) error {
	if days < 0 {
		return fmt.Errorf("%w: window days cannot be negative", ErrValidation)
	}
	if days > MaxWindowDays {
		return fmt.Errorf("%w: window days cannot exceed %d", ErrValidation, MaxWindowDays)
	}
	return nil
}

// ValidateConcepts validates concepts submitted for exclusion.
func ValidateConcepts(concepts []string) error {
	if len(concepts) == 0 {
		return fmt.Errorf("%w: at least one concept is required", ErrValidation)
	}
	for _, c := range concepts {
		if NormalizeConcept(c) == "" {
			return fmt.Errorf("%w: concept cannot be empty", ErrValidation)
		}
		if len(c) > MaxConceptLength {
			return fmt.Errorf("%w: concept exceeds %d characters", ErrValidation, MaxConceptLength)
		}
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
