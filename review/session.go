package review

import (
	"errors"
	"sync"

	"github.com/harmonizehq/ruleforge/rule"
)

// Session errors.
var (
	// ErrNoProject indicates an operation that requires a selected project
	// was attempted without one.
	ErrNoProject = errors.New("no project selected")
	// ErrBusy indicates the guarded network operation is already in flight.
	ErrBusy = errors.New("operation already in progress")
)

// ProjectRef identifies the project a review session works against.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Session is the explicit context every reviewer operation runs against:
// the candidate store, the selected project, the active filter, and the
// busy flags that keep the two network edges (extraction intake, pack
// submission) single-flight. It replaces the ambient page state of the
// dashboard with something each call site can check.
//
// All mutations are serialized behind one mutex; there is exactly one
// logical writer (the current reviewer), so no finer-grained discipline is
// needed.
type Session struct {
	mu       sync.Mutex
	store    *Store
	project  *ProjectRef
	criteria Criteria

	intakeBusy bool
	submitBusy bool
}

// NewSession returns a session with an empty store and no project selected.
func NewSession() *Session {
	return &Session{store: NewStore()}
}

// SelectProject sets the working project. Changing projects clears the
// working set: candidates belong to the project they were extracted for.
func (s *Session) SelectProject(ref ProjectRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project != nil && s.project.ID == ref.ID {
		s.project = &ref
		return
	}
	s.project = &ref
	s.store.ReplaceAll(nil)
}

// Project returns the selected project, or nil.
func (s *Session) Project() *ProjectRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		return nil
	}
	ref := *s.project
	return &ref
}

// SetCriteria replaces the active filter.
func (s *Session) SetCriteria(c Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
}

// Criteria returns the active filter.
func (s *Session) Criteria() Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// View returns the filtered projection of the working set under the active
// criteria, in store order.
func (s *Session) View() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Project(s.store, s.criteria)
}

// ReplaceAll swaps in a new working set (fresh extraction batch).
func (s *Session) ReplaceAll(candidates []Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.ReplaceAll(candidates)
}

// Append adds candidates to the working set.
func (s *Session) Append(candidates ...Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Append(candidates...)
}

// Len returns the total candidate count, discarded included.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}

// Get returns the candidate at position i.
func (s *Session) Get(i int) (Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(i)
}

// Snapshot returns a deep copy of the store for reads that must observe a
// consistent working set (pack assembly, summaries).
func (s *Session) Snapshot() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Clone()
}

// Approve marks the candidate at position i approved.
func (s *Session) Approve(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Approve(i)
}

// Discard soft-removes the candidate at position i.
func (s *Session) Discard(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Discard(i)
}

// EditText replaces the canonical text of the candidate at position i.
// See Store.EditText for the parseErr/err split.
func (s *Session) EditText(i int, text string) (parseErr, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.EditText(i, text)
}

// SetSeverity runs the structured severity-change action on position i.
func (s *Session) SetSeverity(i int, sev rule.Severity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetSeverity(i, sev)
}

// Summary counts the active working set by category.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summarize(s.store)
}

// BeginIntake claims the intake busy flag. It fails fast with ErrNoProject
// when no project is selected and with ErrBusy when an intake is already in
// flight. On success it returns the project the intake was issued against;
// a later project switch does not retarget the in-flight result.
func (s *Session) BeginIntake() (ProjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		return ProjectRef{}, ErrNoProject
	}
	if s.intakeBusy {
		return ProjectRef{}, ErrBusy
	}
	s.intakeBusy = true
	return *s.project, nil
}

// EndIntake releases the intake busy flag.
func (s *Session) EndIntake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intakeBusy = false
}

// BeginSubmit claims the pack submission busy flag.
func (s *Session) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitBusy {
		return ErrBusy
	}
	s.submitBusy = true
	return nil
}

// EndSubmit releases the pack submission busy flag.
func (s *Session) EndSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitBusy = false
}
