// Package classify assigns at most one category to a concept using the
// categories' literal and regex rules.
package classify

import (
	"regexp"
	"strings"

	"github.com/iho/bankrecon/internal/domain"
)

// InvalidRule names a rule whose regex failed to compile. Such rules never match.
type InvalidRule struct {
	CategoryID string
	RuleID     string
	Pattern    string
	Err        error
}

type compiledRule struct {
	literal       string
	caseSensitive bool
	re            *regexp.Regexp
}

type compiledCategory struct {
	id    string
	rules []compiledRule
}

// Classifier holds compiled rules in priority order. It is safe for concurrent use.
type Classifier struct {
	categories []compiledCategory
	invalid    []InvalidRule
}

// New compiles the categories. Declaration order is priority order.
func New(categories []domain.Category) *Classifier {
	c := &Classifier{categories: make([]compiledCategory, 0, len(categories))}

	for _, cat := range categories {
		cc := compiledCategory{id: cat.ID}
		for _, rule := range cat.Rules {
			if rule.Pattern == "" {
				continue
			}
			if !rule.IsRegex {
				lit := rule.Pattern
				if !rule.CaseSensitive {
					lit = strings.ToLower(lit)
				}
				cc.rules = append(cc.rules, compiledRule{literal: lit, caseSensitive: rule.CaseSensitive})
				continue
			}

			pattern := rule.Pattern
			if !rule.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				c.invalid = append(c.invalid, InvalidRule{
					CategoryID: cat.ID,
					RuleID:     rule.ID,
					Pattern:    rule.Pattern,
					Err:        err,
				})
				continue
			}
			cc.rules = append(cc.rules, compiledRule{re: re})
		}
		c.categories = append(c.categories, cc)
	}

	return c
}

// InvalidRules lists the regex rules that were skipped.
func (c *Classifier) InvalidRules() []InvalidRule {
	return c.invalid
}

// Classify returns the id of the first category with a matching rule, or "".
func (c *Classifier) Classify(concept string) string {
	concept = domain.CleanConcept(concept)
	if concept == "" {
		return ""
	}
	lower := strings.ToLower(concept)

	for _, cat := range c.categories {
		for _, r := range cat.rules {
			if r.matches(concept, lower) {
				return cat.id
			}
		}
	}
	return ""
}

func (r compiledRule) matches(concept, lower string) bool {
	if r.re != nil {
		return r.re.MatchString(concept)
	}
	if r.caseSensitive {
		return strings.Contains(concept, r.literal)
	}
	return strings.Contains(lower, r.literal)
}

// Enabled filters categories down to the enabled ids, keeping declaration order.
func Enabled(categories []domain.Category, enabledIDs []string) []domain.Category {
	enabled := make(map[string]bool, len(enabledIDs))
	for _, id := range enabledIDs {
		enabled[id] = true
	}

	out := make([]domain.Category, 0, len(enabledIDs))
	for _, cat := range categories {
		if enabled[cat.ID] {
			out = append(out, cat)
		}
	}
	return out
}
