package runlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStoreInitAndLogStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.duckdb")
	cond := true
	steps := []StepInfo{
		{Name: "fetch", Deps: nil},
		{Name: "decide", Deps: []string{"fetch"}, When: "decide", Condition: &cond, IsBranch: true},
	}

	store, err := NewRunStore(path, "demo", steps)
	require.NoError(t, err)
	defer store.Close()

	assert.NotEmpty(t, store.RunID())

	rows := []map[string]any{{"id": 1}, {"id": 2}}
	durMS := 12.5
	in, out := 0, 2
	require.NoError(t, store.LogStep("fetch", StepMeta{
		Status:      "done",
		ResultKind:  "list",
		Rows:        rows,
		DurationMS:  &durMS,
		InputLines:  &in,
		OutputLines: &out,
		OutputText:  "",
	}))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM step_fetch`).Scan(&count))
	assert.Equal(t, 2, count)

	var status string
	require.NoError(t, store.db.QueryRow(
		`SELECT status FROM step_runtime WHERE step_name = 'fetch'`,
	).Scan(&status))
	assert.Equal(t, "done", status)
}

func TestRunStoreLogStepUnknownStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.duckdb")
	store, err := NewRunStore(path, "demo", []StepInfo{{Name: "fetch"}})
	require.NoError(t, err)
	defer store.Close()

	err = store.LogStep("ghost", StepMeta{Status: "done"})
	assert.Error(t, err)
}
