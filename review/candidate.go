// Package review implements the rule candidate review engine: the candidate
// store, the canonical/derived sync (retag), the lifecycle state machine,
// the filter projection, and the session context that reviewer actions run
// against.
package review

import (
	"github.com/google/uuid"

	"github.com/harmonizehq/ruleforge/rule"
)

// Candidate is a rule proposal under review. CanonicalText is the single
// source of truth; DerivedID, DerivedSeverity, and Category are recomputed
// from it by Retag and are never authoritative on their own.
type Candidate struct {
	// ID is a stable identifier assigned at creation. Actions address
	// candidates by store position at the surface, but the ID survives
	// store mutations and is what the event log records.
	ID string `json:"id"`

	// CanonicalText is the full rule definition serialized as YAML.
	CanonicalText string `json:"yaml"`

	// Confidence is the producer-supplied extraction confidence in [0,1].
	// Never recomputed locally.
	Confidence float64 `json:"confidence"`

	// Category mirrors the type field inside CanonicalText. The producer
	// may supply it before the first retag.
	Category rule.Category `json:"category,omitempty"`

	// DerivedID and DerivedSeverity are mechanically extracted from
	// CanonicalText. Empty when extraction has not succeeded yet.
	DerivedID       string `json:"derived_id,omitempty"`
	DerivedSeverity string `json:"derived_severity,omitempty"`

	// DuplicateOf and Similarity are producer-supplied duplicate hints.
	DuplicateOf string   `json:"duplicate_of,omitempty"`
	Similarity  *float64 `json:"similarity,omitempty"`

	// SourceSnippet is the excerpt the rule was extracted from.
	// Immutable after creation.
	SourceSnippet string `json:"source_snippet,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`
}

// NewCandidate builds a candidate around canonical text with a fresh ID and
// status new. The caller is expected to Retag the result.
func NewCandidate(canonicalText string) Candidate {
	return Candidate{
		ID:            uuid.New().String(),
		CanonicalText: canonicalText,
		Status:        StatusNew,
	}
}

// Retag recomputes the derived fields of a candidate from its canonical
// text. On success it sets DerivedID, DerivedSeverity, and Category (a
// producer-supplied category is kept when the document omits type). On
// parse failure the candidate is returned unchanged so previously derived
// values survive a broken edit.
//
// Retag is pure and idempotent: retagging twice without a text change is a
// no-op the second time.
func Retag(c Candidate) Candidate {
	doc, err := rule.Parse(c.CanonicalText)
	if err != nil {
		return c
	}
	c.DerivedID = doc.ID
	c.DerivedSeverity = doc.Severity
	if doc.Type != "" {
		c.Category = rule.Category(doc.Type)
	}
	return c
}
