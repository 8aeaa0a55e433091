package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsUnknownDep(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("a", noopFunc, AddStepOpts{Deps: []string{"missing"}}))
	err := d.Validate()
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestValidateRejectsCycles(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("a", noopFunc, AddStepOpts{Deps: []string{"b"}}))
	require.NoError(t, d.AddStep("b", noopFunc, AddStepOpts{Deps: []string{"a"}}))
	err := d.Validate()
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestValidateRejectsConditionWithoutWhen(t *testing.T) {
	d := NewDag("t")
	cond := true
	require.NoError(t, d.AddStep("a", noopFunc, AddStepOpts{Condition: &cond}))
	err := d.Validate()
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestValidateRejectsWhenWithoutCondition(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("decision", noopFunc, AddStepOpts{IsBranch: true}))
	s := d.steps["decision"]
	s.When = "decision"
	err := d.Validate()
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestValidateRejectsInvalidMode(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("a", noopFunc, AddStepOpts{}))
	d.steps["a"].Mode = "bogus"
	err := d.Validate()
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("start", noopFunc, AddStepOpts{}))
	require.NoError(t, d.AddStep("decision", noopFunc, AddStepOpts{Deps: []string{"start"}, IsBranch: true}))
	cond := true
	require.NoError(t, d.AddStep("on_true", noopFunc, AddStepOpts{When: "decision", Condition: &cond}))
	assert.NoError(t, d.Validate())
}
