package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFunc(ctx context.Context, results map[string]StepResult) (StepResult, error) {
	return NoResult(), nil
}

func TestAddStepAutoAddsWhenToDeps(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("start", noopFunc, AddStepOpts{}))
	require.NoError(t, d.AddStep("decision", noopFunc, AddStepOpts{Deps: []string{"start"}, IsBranch: true}))

	cond := true
	require.NoError(t, d.AddStep("on_true", noopFunc, AddStepOpts{
		When: "decision", Condition: &cond,
	}))

	step, ok := d.Step("on_true")
	require.True(t, ok)
	assert.Contains(t, step.Deps, "decision")
}

func TestAddStepRejectsDuplicateNames(t *testing.T) {
	d := NewDag("t")
	require.NoError(t, d.AddStep("a", noopFunc, AddStepOpts{}))
	err := d.AddStep("a", noopFunc, AddStepOpts{})
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestDisableEdgeAndStepAreSorted(t *testing.T) {
	d := NewDag("t")
	d.DisableEdge("b", "a")
	d.DisableEdge("a", "a")
	d.DisableStep("z")
	d.DisableStep("a")

	assert.Equal(t, []string{"a", "z"}, d.DisabledSteps())
	edges := d.DisabledEdges()
	require.Len(t, edges, 2)
	assert.Equal(t, [2]string{"a", "a"}, edges[0])
	assert.Equal(t, [2]string{"b", "a"}, edges[1])
}
