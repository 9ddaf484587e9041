package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonizehq/ruleforge/rule"
)

func TestSessionIntakeRequiresProject(t *testing.T) {
	s := NewSession()
	_, err := s.BeginIntake()
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestSessionIntakeBusyFlag(t *testing.T) {
	s := NewSession()
	s.SelectProject(ProjectRef{ID: "p1", Name: "Payroll"})

	ref, err := s.BeginIntake()
	require.NoError(t, err)
	assert.Equal(t, "p1", ref.ID)

	_, err = s.BeginIntake()
	assert.ErrorIs(t, err, ErrBusy, "second intake must be refused while busy")

	s.EndIntake()
	_, err = s.BeginIntake()
	assert.NoError(t, err)
	s.EndIntake()
}

func TestSessionIntakeKeepsIssuedProject(t *testing.T) {
	s := NewSession()
	s.SelectProject(ProjectRef{ID: "p1"})

	ref, err := s.BeginIntake()
	require.NoError(t, err)

	// Project switches while the extraction is in flight. The in-flight
	// result still lands against the project captured at intake time.
	s.SelectProject(ProjectRef{ID: "p2"})
	assert.Equal(t, "p1", ref.ID)
	s.EndIntake()
}

func TestSessionSubmitBusyFlag(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.BeginSubmit())
	assert.ErrorIs(t, s.BeginSubmit(), ErrBusy)
	s.EndSubmit()
	assert.NoError(t, s.BeginSubmit())
	s.EndSubmit()
}

func TestSessionProjectSwitchClearsStore(t *testing.T) {
	s := NewSession()
	s.SelectProject(ProjectRef{ID: "p1"})
	s.Append(Retag(NewCandidate("id: a\n")))
	require.Equal(t, 1, s.Len())

	// Re-selecting the same project keeps the working set.
	s.SelectProject(ProjectRef{ID: "p1", Name: "renamed"})
	assert.Equal(t, 1, s.Len())

	// A different project clears it.
	s.SelectProject(ProjectRef{ID: "p2"})
	assert.Equal(t, 0, s.Len())
}

func TestSessionViewAndCriteria(t *testing.T) {
	s := NewSession()
	s.Append(
		Retag(NewCandidate("id: a\ntype: code\n")),
		Retag(NewCandidate("id: b\ntype: naming\n")),
	)

	s.SetCriteria(Criteria{Category: rule.CategoryNaming})
	view := s.View()
	require.Len(t, view, 1)
	assert.Equal(t, "b", view[0].DerivedID)

	s.SetCriteria(Criteria{})
	assert.Len(t, s.View(), 2)
}

func TestSessionActionsByPosition(t *testing.T) {
	s := NewSession()
	s.Append(
		Retag(NewCandidate("id: a\nseverity: MINOR\n")),
		Retag(NewCandidate("id: b\n")),
	)

	require.NoError(t, s.Approve(0))
	require.NoError(t, s.Discard(1))

	c, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, c.Status)

	require.NoError(t, s.SetSeverity(0, rule.SeverityMajor))
	c, _ = s.Get(0)
	assert.Equal(t, "MAJOR", c.DerivedSeverity)
	assert.Equal(t, StatusApproved, c.Status)
}
