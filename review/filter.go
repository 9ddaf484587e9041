package review

import (
	"strings"

	"github.com/harmonizehq/ruleforge/rule"
)

// Criteria narrows the active view of the store. Both predicates are
// optional and independent: the zero value matches every non-discarded
// candidate.
type Criteria struct {
	// Category, when set, requires an exact category match.
	Category rule.Category `json:"category,omitempty"`

	// Query, when set, requires a case-insensitive substring match
	// against the canonical text.
	Query string `json:"query,omitempty"`
}

// IsZero reports whether no predicate is set.
func (c Criteria) IsZero() bool {
	return c.Category == "" && c.Query == ""
}

// Matches reports whether a candidate satisfies the criteria. Discarded
// candidates never match.
func (c Criteria) Matches(cand Candidate) bool {
	if cand.Status == StatusDiscarded {
		return false
	}
	if c.Category != "" && cand.Category != c.Category {
		return false
	}
	if c.Query != "" && !strings.Contains(strings.ToLower(cand.CanonicalText), strings.ToLower(c.Query)) {
		return false
	}
	return true
}

// Project returns the candidates matching the criteria, in store order.
// It is a pure read: the store is never mutated, and the result is a copy.
func Project(s *Store, criteria Criteria) []Candidate {
	var out []Candidate
	for _, cand := range s.All() {
		if criteria.Matches(cand) {
			out = append(out, cand)
		}
	}
	return out
}
