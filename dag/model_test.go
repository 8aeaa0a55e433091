package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("line-1"))
	assert.Equal(t, 3, countLines("line-1\nline-2\nline-3"))
	assert.Equal(t, 2, countLines([]Row{{"a": 1}, {"b": 2}}))
	assert.Equal(t, 2, countLines(Row{"a": 1, "b": 2}))
	assert.Equal(t, 1, countLines(42))
}

func TestResultLineCountAndKind(t *testing.T) {
	assert.Equal(t, 0, resultLineCount(nil))
	assert.Equal(t, "none", resultKind(nil))

	assert.Equal(t, 0, resultLineCount(EmptyResult{}))
	assert.Equal(t, "none", resultKind(EmptyResult{}))

	row := RowResult(Row{"a": 1, "b": 2})
	assert.Equal(t, 2, resultLineCount(row))
	assert.Equal(t, "scalar", resultKind(row))

	rows := RowsResult([]Row{{"a": 1}, {"a": 2}, {"a": 3}})
	assert.Equal(t, 3, resultLineCount(rows))
	assert.Equal(t, "list", resultKind(rows))

	branch := BranchResult(true)
	assert.Equal(t, 1, resultLineCount(branch))
	assert.Equal(t, "scalar", resultKind(branch))
}

func TestStepStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusDone.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusSkipped.IsTerminal())
}

func TestRowEmissionHelpers(t *testing.T) {
	assert.Empty(t, DropRow().Rows)
	assert.Equal(t, []Row{{"a": 1}}, EmitRow(Row{"a": 1}).Rows)
	assert.Equal(t, []Row{{"a": 1}, {"a": 2}}, EmitRows([]Row{{"a": 1}, {"a": 2}}).Rows)
}
