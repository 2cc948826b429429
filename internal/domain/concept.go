package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanConcept trims the text and collapses internal whitespace to single spaces.
// Case and accents are preserved.
func CleanConcept(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeConcept returns the comparison form of a concept: cleaned, case-folded
// and stripped of diacritics, so "  Comisión   MENSUAL " becomes "comision mensual".
func NormalizeConcept(s string) string {
	s = strings.ToLower(CleanConcept(s))
	if s == "" {
		return s
	}

	// transform.Chain is stateful, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return folded
}

// ConceptMatchesTerm reports whether a normalized concept equals a normalized
// term or contains it as a contiguous run of whole words.
func ConceptMatchesTerm(concept, term string) bool {
	if term == "" || concept == "" {
		return false
	}
	if concept == term {
		return true
	}

	words := strings.Fields(concept)
	termWords := strings.Fields(term)
	if len(termWords) > len(words) {
		return false
	}

	for i := 0; i+len(termWords) <= len(words); i++ {
		match := true
		for j, w := range termWords {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

// IsConceptExcluded reports whether the concept is hit by any excluded term.
// Terms must already be normalized.
func IsConceptExcluded(concept string, terms []string) bool {
	normalized := NormalizeConcept(concept)
	for _, term := range terms {
		if ConceptMatchesTerm(normalized, term) {
			return true
		}
	}
	return false
}
