package pack

import (
	"errors"

	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// Assembly errors.
var (
	// ErrNoCandidates indicates assembly found no approved or edited
	// candidates to submit.
	ErrNoCandidates = errors.New("no approved candidates to submit")
	// ErrNameRequired indicates a pack was assembled without a name.
	ErrNameRequired = errors.New("pack name is required")
)

// Submission is the pack payload sent to the backend. Rules are generic
// objects rather than typed documents: the backend owns the schema, and a
// candidate whose text no longer parses still travels as a raw-text record
// rather than silently dropping out of the pack.
type Submission struct {
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	ProjectID string           `json:"projectId,omitempty"`
	Rules     []map[string]any `json:"rules"`
}

// Assemble builds a pack submission from the accepting candidates in the
// store, in store order. Approved and edited candidates are included;
// new and discarded ones are not. A candidate whose canonical text fails to
// parse contributes a {"rawText": ...} record so nothing the reviewer
// accepted is lost.
func Assemble(name string, store *review.Store, project *review.ProjectRef) (*Submission, error) {
	if name == "" {
		return nil, ErrNameRequired
	}

	var rules []map[string]any
	for _, c := range store.All() {
		if !c.Status.Accepting() {
			continue
		}
		obj, err := rule.ParseObject(c.CanonicalText)
		if err != nil {
			obj = map[string]any{"rawText": c.CanonicalText}
		}
		rules = append(rules, obj)
	}
	if len(rules) == 0 {
		return nil, ErrNoCandidates
	}

	sub := &Submission{
		Name:   name,
		Status: "draft",
		Rules:  rules,
	}
	if project != nil {
		sub.ProjectID = project.ID
	}
	return sub, nil
}
