package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePositionsSingleLevel(t *testing.T) {
	positions, width, height := Compute([]string{"a", "b", "c"}, map[string]int{"a": 0, "b": 0, "c": 0})

	assert.Equal(t, Position{X: 40, Y: 40}, positions["a"])
	assert.Equal(t, Position{X: 40, Y: 160}, positions["b"])
	assert.Equal(t, Position{X: 40, Y: 280}, positions["c"])
	assert.Equal(t, 40+140+40, width)
	assert.Equal(t, 280+48+40, height)
}

func TestComputePositionsMultipleLevels(t *testing.T) {
	order := []string{"start", "decision", "on_true", "on_false"}
	levels := map[string]int{"start": 0, "decision": 1, "on_true": 2, "on_false": 2}

	positions, width, _ := Compute(order, levels)

	assert.Equal(t, Position{X: 40, Y: 40}, positions["start"])
	assert.Equal(t, Position{X: 240, Y: 40}, positions["decision"])
	assert.Equal(t, Position{X: 440, Y: 40}, positions["on_true"])
	assert.Equal(t, Position{X: 440, Y: 160}, positions["on_false"])
	assert.Equal(t, 440+140+40, width)
}

func TestComputeEmptyOrder(t *testing.T) {
	positions, width, height := Compute(nil, nil)
	assert.Empty(t, positions)
	assert.Equal(t, 0, width)
	assert.Equal(t, 0, height)
}
