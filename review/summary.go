package review

import "github.com/harmonizehq/ruleforge/rule"

// Summary holds per-category counts over the active working set, the shape
// the dashboard KPI cards consume.
type Summary struct {
	Code        int `json:"code"`
	Design      int `json:"design"`
	Naming      int `json:"naming"`
	Performance int `json:"performance"`
	Template    int `json:"template"`
	Total       int `json:"total"`
}

// Summarize counts non-discarded candidates by category. Candidates with an
// unknown or empty category contribute to the total only.
func Summarize(s *Store) Summary {
	var sum Summary
	for _, c := range s.All() {
		if c.Status == StatusDiscarded {
			continue
		}
		sum.Total++
		switch c.Category {
		case rule.CategoryCode:
			sum.Code++
		case rule.CategoryDesign:
			sum.Design++
		case rule.CategoryNaming:
			sum.Naming++
		case rule.CategoryPerformance:
			sum.Performance++
		case rule.CategoryTemplate:
			sum.Template++
		}
	}
	return sum
}
