package review

import (
	"errors"
	"fmt"

	"github.com/harmonizehq/ruleforge/rule"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the addressed candidate does not exist.
	ErrNotFound = errors.New("candidate not found")
	// ErrBadTransition indicates the requested status change is illegal.
	ErrBadTransition = errors.New("illegal status transition")
	// ErrBadSeverity indicates an unknown severity value.
	ErrBadSeverity = errors.New("invalid severity")
)

// Store holds the ordered working set of rule candidates. Insertion order is
// preserved: it is the default display order and the basis for positional
// addressing. The store is not safe for concurrent use; the Session
// serializes access (there is exactly one writer, see Session).
type Store struct {
	candidates []Candidate
}

// NewStore returns an empty candidate store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceAll swaps in a new working set. Used after a fresh extraction batch
// or a project switch.
func (s *Store) ReplaceAll(candidates []Candidate) {
	s.candidates = append([]Candidate(nil), candidates...)
}

// Append adds candidates to the end of the working set.
func (s *Store) Append(candidates ...Candidate) {
	s.candidates = append(s.candidates, candidates...)
}

// Len returns the total number of candidates, discarded included.
func (s *Store) Len() int {
	return len(s.candidates)
}

// Get returns the candidate at position i.
func (s *Store) Get(i int) (Candidate, error) {
	if i < 0 || i >= len(s.candidates) {
		return Candidate{}, fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	return s.candidates[i], nil
}

// All returns a copy of the full working set in insertion order.
func (s *Store) All() []Candidate {
	return append([]Candidate(nil), s.candidates...)
}

// Find returns the position of the candidate with the given ID.
func (s *Store) Find(id string) (int, bool) {
	for i := range s.candidates {
		if s.candidates[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Clone returns a deep copy of the store. Pack assembly reads from a clone
// so an in-flight submission observes a consistent working set.
func (s *Store) Clone() *Store {
	return &Store{candidates: s.All()}
}

// Approve marks the candidate at position i approved. Approving an already
// approved candidate is a no-op.
func (s *Store) Approve(i int) error {
	return s.transition(i, StatusApproved)
}

// Discard soft-removes the candidate at position i. The record stays in the
// store but disappears from every filtered view and from pack assembly.
// Discarding twice is a no-op.
func (s *Store) Discard(i int) error {
	return s.transition(i, StatusDiscarded)
}

func (s *Store) transition(i int, target Status) error {
	if i < 0 || i >= len(s.candidates) {
		return fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	c := &s.candidates[i]
	if c.Status == target {
		return nil
	}
	if !c.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, target)
	}
	c.Status = target
	return nil
}

// EditText replaces the canonical text of the candidate at position i, marks
// it edited, and retags it. The edit is accepted even when the new text does
// not parse — the reviewer keeps fixing it in place — in which case the
// derived fields retain their previous values and the canonical parse error
// is returned as parseErr for the editing surface to display. err is non-nil
// only when the edit itself is rejected (unknown position, discarded
// candidate).
func (s *Store) EditText(i int, text string) (parseErr, err error) {
	if i < 0 || i >= len(s.candidates) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	c := &s.candidates[i]
	if c.Status != StatusEdited && !c.Status.CanTransitionTo(StatusEdited) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, StatusEdited)
	}

	c.CanonicalText = text
	c.Status = StatusEdited
	*c = Retag(*c)

	if _, perr := rule.Parse(text); perr != nil {
		return perr, nil
	}
	return nil, nil
}

// SetSeverity is the structured severity-change action. When the canonical
// text parses, the severity field is rewritten inside the text and the
// candidate retagged; an approved candidate stays approved (a severity
// correction does not demote it), anything else becomes edited. When the
// text does not parse, only DerivedSeverity is set and the candidate is
// marked edited — the one deliberate relaxation of the canonical/derived
// invariant.
func (s *Store) SetSeverity(i int, sev rule.Severity) error {
	if !sev.IsValid() {
		return fmt.Errorf("%w: %q", ErrBadSeverity, sev)
	}
	if i < 0 || i >= len(s.candidates) {
		return fmt.Errorf("%w: index %d", ErrNotFound, i)
	}
	c := &s.candidates[i]

	target := StatusEdited
	if c.Status == StatusApproved {
		target = StatusApproved
	}
	if c.Status != target && !c.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, target)
	}

	rewritten, err := rule.RewriteSeverity(c.CanonicalText, sev)
	if err != nil {
		// Degraded path: canonical text is broken, touch the derived
		// field directly so the reviewer's intent is not lost.
		c.DerivedSeverity = string(sev)
		c.Status = StatusEdited
		return nil
	}

	c.CanonicalText = rewritten
	c.Status = target
	*c = Retag(*c)
	return nil
}
