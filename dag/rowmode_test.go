package dag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenRowsConcatenatesInDependencyOrder(t *testing.T) {
	snapshot := map[string]StepResult{
		"single": RowResult(Row{"v": 1}),
		"multi":  RowsResult([]Row{{"v": 2}, {"v": 3}}),
		"empty":  EmptyResult{},
	}
	rows := flattenRows([]string{"single", "multi", "empty"}, snapshot)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0]["v"])
	assert.Equal(t, 2, rows[1]["v"])
	assert.Equal(t, 3, rows[2]["v"])
}

func TestRunRowModeEmitsTransformedRows(t *testing.T) {
	input := []Row{{"n": 1}, {"n": 2}, {"n": 3}}
	fn := func(ctx context.Context, row Row) (RowEmission, error) {
		n := row["n"].(int)
		return EmitRow(Row{"n": n * 10}), nil
	}

	out, err := runRowMode(context.Background(), fn, input, 0, 0, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 10, out[0]["n"])
	assert.Equal(t, 20, out[1]["n"])
	assert.Equal(t, 30, out[2]["n"])
}

func TestRunRowModeDropsNilEmissions(t *testing.T) {
	input := []Row{{"n": 1}, {"n": 2}, {"n": 3}}
	fn := func(ctx context.Context, row Row) (RowEmission, error) {
		n := row["n"].(int)
		if n%2 == 0 {
			return DropRow(), nil
		}
		return EmitRow(row), nil
	}

	out, err := runRowMode(context.Background(), fn, input, 0, 0, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0]["n"])
	assert.Equal(t, 3, out[1]["n"])
}

func TestRunRowModePropagatesRowFuncError(t *testing.T) {
	input := []Row{{"n": 1}}
	fn := func(ctx context.Context, row Row) (RowEmission, error) {
		return RowEmission{}, assert.AnError
	}

	_, err := runRowMode(context.Background(), fn, input, 0, 0, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRunRowModeEmitsProgressTicks(t *testing.T) {
	input := make([]Row, 50)
	for i := range input {
		input[i] = Row{"n": i}
	}
	fn := func(ctx context.Context, row Row) (RowEmission, error) {
		time.Sleep(2 * time.Millisecond)
		return EmitRow(row), nil
	}

	var ticks int
	onProgress := func(n int) { ticks++ }

	out, err := runRowMode(context.Background(), fn, input, 0, 5*time.Millisecond, onProgress)
	require.NoError(t, err)
	assert.Len(t, out, 50)
	assert.Greater(t, ticks, 0)
}
