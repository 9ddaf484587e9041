package extract

import (
	"strings"

	"github.com/harmonizehq/ruleforge/rule"
)

// DetectCategory guesses the rule category of a raw snippet with the same
// keyword heuristic the extraction backend applies when choosing a prompt.
// It is used to pick the fallback catalog when the caller supplies no rule
// type, and defaults to code.
func DetectCategory(text string) rule.Category {
	up := strings.ToUpper(text)

	switch {
	case containsAny(up, "SELECT", "TRY.", "METHOD", "CALL FUNCTION"):
		return rule.CategoryCode
	case containsAny(up, "DESIGN", "PATTERN"):
		return rule.CategoryDesign
	case containsAny(up, "NAME", "PREFIX"):
		return rule.CategoryNaming
	case containsAny(up, "PERFORMANCE", "OPTIMIZE"):
		return rule.CategoryPerformance
	case containsAny(up, "TEMPLATE", "SNIPPET"):
		return rule.CategoryTemplate
	default:
		return rule.CategoryCode
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
