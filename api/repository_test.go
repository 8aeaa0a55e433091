package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninout-run/ninoutgo/runlog"
)

func seedRun(t *testing.T, logsDir, runName string) {
	t.Helper()
	cond := true
	steps := []runlog.StepInfo{
		{Name: "fetch"},
		{Name: "decision", Deps: []string{"fetch"}, IsBranch: true},
		{Name: "on_true", Deps: []string{"decision"}, When: "decision", Condition: &cond},
	}
	path := filepath.Join(logsDir, runName, "run.duckdb")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	store, err := runlog.NewRunStore(path, "demo", steps)
	require.NoError(t, err)
	defer store.Close()

	durMS := 5.0
	in, out := 0, 2
	require.NoError(t, store.LogStep("fetch", runlog.StepMeta{
		Status: "done", ResultKind: "list", DurationMS: &durMS,
		InputLines: &in, OutputLines: &out,
		Rows: []map[string]any{{"id": 1}, {"id": 2}},
	}))
	require.NoError(t, store.LogStep("decision", runlog.StepMeta{Status: "done", ResultKind: "scalar"}))
	require.NoError(t, store.LogStep("on_true", runlog.StepMeta{Status: "skipped"}))
}

func TestRepositoryListRunsAndDetails(t *testing.T) {
	logsDir := t.TempDir()
	seedRun(t, logsDir, "run_a")
	seedRun(t, logsDir, "run_b")

	repo := newRepository(logsDir)

	runs, err := repo.listRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_b", runs[0].RunName) // reverse-sorted

	details, err := repo.runDetails("run_a")
	require.NoError(t, err)
	assert.Equal(t, "demo", details.DagName)
	require.Len(t, details.Steps, 3)
}

func TestRepositoryRunDetailsNotFound(t *testing.T) {
	repo := newRepository(t.TempDir())
	_, err := repo.runDetails("ghost")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepositoryStepRows(t *testing.T) {
	logsDir := t.TempDir()
	seedRun(t, logsDir, "run_a")
	repo := newRepository(logsDir)

	page, err := repo.stepRows("run_a", "fetch", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalRows)
	require.Len(t, page.Rows, 2)
	assert.EqualValues(t, 1, page.Rows[0].RowID)
}

func TestRepositoryStepRowsUnknownStep(t *testing.T) {
	logsDir := t.TempDir()
	seedRun(t, logsDir, "run_a")
	repo := newRepository(logsDir)

	_, err := repo.stepRows("run_a", "ghost", 10, 0)
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestRepositoryRunGraphComputesLevelsAndPositions(t *testing.T) {
	logsDir := t.TempDir()
	seedRun(t, logsDir, "run_a")
	repo := newRepository(logsDir)

	graph, err := repo.runGraph("run_a")
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 3)

	byName := make(map[string]GraphNode, len(graph.Nodes))
	for _, n := range graph.Nodes {
		byName[n.StepName] = n
	}
	assert.Equal(t, 40, byName["fetch"].X)
	assert.Greater(t, byName["decision"].X, byName["fetch"].X)
	assert.Greater(t, byName["on_true"].X, byName["decision"].X)

	var conditional int
	for _, e := range graph.Edges {
		if e.IsConditional {
			conditional++
		}
	}
	assert.Equal(t, 1, conditional)
}
