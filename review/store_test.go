package review

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonizehq/ruleforge/rule"
)

func seedStore(t *testing.T, texts ...string) *Store {
	t.Helper()
	s := NewStore()
	for _, text := range texts {
		s.Append(Retag(NewCandidate(text)))
	}
	return s
}

func TestStoreApproveDiscard(t *testing.T) {
	s := seedStore(t, "id: a\n", "id: b\n")

	require.NoError(t, s.Approve(0))
	c, err := s.Get(0)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, c.Status)

	// Approving again is a no-op.
	require.NoError(t, s.Approve(0))

	require.NoError(t, s.Discard(1))
	c, err = s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, c.Status)

	// Discarded is terminal.
	err = s.Approve(1)
	assert.ErrorIs(t, err, ErrBadTransition)

	// Length is unchanged by discarding.
	assert.Equal(t, 2, s.Len())
}

func TestStoreOutOfRange(t *testing.T) {
	s := seedStore(t, "id: a\n")
	assert.ErrorIs(t, s.Approve(1), ErrNotFound)
	assert.ErrorIs(t, s.Discard(-1), ErrNotFound)
	_, err := s.Get(5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreEditText(t *testing.T) {
	s := seedStore(t, "id: a\nseverity: MINOR\n")

	parseErr, err := s.EditText(0, "id: a2\nseverity: MAJOR\n")
	require.NoError(t, err)
	require.NoError(t, parseErr)

	c, _ := s.Get(0)
	assert.Equal(t, StatusEdited, c.Status)
	assert.Equal(t, "a2", c.DerivedID)
	assert.Equal(t, "MAJOR", c.DerivedSeverity)
}

func TestStoreEditTextAcceptsBrokenYAML(t *testing.T) {
	s := seedStore(t, "id: a\nseverity: MINOR\n")

	parseErr, err := s.EditText(0, ": [broken")
	require.NoError(t, err)
	require.Error(t, parseErr, "broken text must be reported")

	c, _ := s.Get(0)
	assert.Equal(t, ": [broken", c.CanonicalText, "edit must be accepted into canonical text")
	assert.Equal(t, StatusEdited, c.Status)
	// Previous derived values survive the broken edit.
	assert.Equal(t, "a", c.DerivedID)
	assert.Equal(t, "MINOR", c.DerivedSeverity)
}

func TestStoreEditDiscardedRejected(t *testing.T) {
	s := seedStore(t, "id: a\n")
	require.NoError(t, s.Discard(0))
	_, err := s.EditText(0, "id: b\n")
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestStoreSetSeverityRoundTrip(t *testing.T) {
	s := seedStore(t, "id: a\nseverity: MINOR\ntype: code\n")

	require.NoError(t, s.SetSeverity(0, rule.SeverityMajor))
	c, _ := s.Get(0)
	assert.True(t, strings.Contains(c.CanonicalText, "severity: MAJOR"), "canonical text: %q", c.CanonicalText)
	assert.Equal(t, "MAJOR", c.DerivedSeverity)
	assert.Equal(t, StatusEdited, c.Status)
}

func TestStoreSetSeverityKeepsApproved(t *testing.T) {
	s := seedStore(t, "id: a\nseverity: MINOR\n")
	require.NoError(t, s.Approve(0))

	require.NoError(t, s.SetSeverity(0, rule.SeverityCritical))
	c, _ := s.Get(0)
	assert.Equal(t, StatusApproved, c.Status, "severity correction must not demote an approved rule")
	assert.Equal(t, "CRITICAL", c.DerivedSeverity)
}

func TestStoreSetSeverityFallbackOnBrokenText(t *testing.T) {
	s := seedStore(t, "id: a\nseverity: MINOR\n")
	_, err := s.EditText(0, ": [broken")
	require.NoError(t, err)

	require.NoError(t, s.SetSeverity(0, rule.SeverityInfo))
	c, _ := s.Get(0)
	assert.Equal(t, ": [broken", c.CanonicalText, "broken text untouched")
	assert.Equal(t, "INFO", c.DerivedSeverity, "derived severity set directly")
	assert.Equal(t, StatusEdited, c.Status)
}

func TestStoreSetSeverityRejectsUnknownValue(t *testing.T) {
	s := seedStore(t, "id: a\n")
	err := s.SetSeverity(0, rule.Severity("warn"))
	assert.ErrorIs(t, err, ErrBadSeverity)
}

func TestStoreSetSeverityDiscardedRejected(t *testing.T) {
	s := seedStore(t, "id: a\nseverity: MINOR\n")
	require.NoError(t, s.Discard(0))
	err := s.SetSeverity(0, rule.SeverityMajor)
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestStoreReplaceAllAndFind(t *testing.T) {
	s := seedStore(t, "id: a\n", "id: b\n")
	id := s.All()[1].ID

	i, ok := s.Find(id)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	s.ReplaceAll(nil)
	assert.Equal(t, 0, s.Len())
	_, ok = s.Find(id)
	assert.False(t, ok)
}

func TestStoreCloneIsolated(t *testing.T) {
	s := seedStore(t, "id: a\n")
	clone := s.Clone()
	require.NoError(t, s.Discard(0))

	c, err := clone.Get(0)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, c.Status, "clone must not observe later mutations")
}

func TestErrorsDistinguishable(t *testing.T) {
	s := seedStore(t, "id: a\n")
	require.NoError(t, s.Discard(0))
	err := s.Approve(0)
	assert.True(t, errors.Is(err, ErrBadTransition))
	assert.False(t, errors.Is(err, ErrNotFound))
}
