package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonizehq/ruleforge/review"
)

func storeWith(statuses ...review.Status) *review.Store {
	s := review.NewStore()
	for i, st := range statuses {
		c := review.NewCandidate("id: rule-" + string(rune('a'+i)) + "\nseverity: MINOR\n")
		c.Status = st
		s.Append(c)
	}
	return s
}

func TestAssembleSelectsAcceptingInOrder(t *testing.T) {
	s := storeWith(review.StatusApproved, review.StatusNew, review.StatusEdited, review.StatusDiscarded)

	sub, err := Assemble("abap-core", s, &review.ProjectRef{ID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, "abap-core", sub.Name)
	assert.Equal(t, "draft", sub.Status)
	assert.Equal(t, "p1", sub.ProjectID)
	require.Len(t, sub.Rules, 2, "only approved and edited candidates travel")
	assert.Equal(t, "rule-a", sub.Rules[0]["id"])
	assert.Equal(t, "rule-c", sub.Rules[1]["id"])
}

func TestAssembleRequiresName(t *testing.T) {
	_, err := Assemble("", storeWith(review.StatusApproved), nil)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestAssembleRejectsEmptySelection(t *testing.T) {
	_, err := Assemble("empty", storeWith(review.StatusNew, review.StatusDiscarded), nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestAssembleUnparseableTextTravelsRaw(t *testing.T) {
	s := review.NewStore()
	c := review.NewCandidate("id: [broken")
	c.Status = review.StatusApproved
	s.Append(c)

	sub, err := Assemble("p", s, nil)
	require.NoError(t, err)
	require.Len(t, sub.Rules, 1)
	assert.Equal(t, "id: [broken", sub.Rules[0]["rawText"])
}

func TestAssembleWithoutProject(t *testing.T) {
	sub, err := Assemble("p", storeWith(review.StatusApproved), nil)
	require.NoError(t, err)
	assert.Empty(t, sub.ProjectID)
}
