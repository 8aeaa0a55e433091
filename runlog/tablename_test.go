package runlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNameForStep(t *testing.T) {
	assert.Equal(t, "step_fetch_rows", TableNameForStep("fetch-rows"))
	assert.Equal(t, "step_fetch_rows", TableNameForStep("Fetch Rows"))
	assert.Equal(t, "step_s_1load", TableNameForStep("1load"))
	assert.Equal(t, "step_step", TableNameForStep("!!!"))
	assert.Equal(t, "step_a_b", TableNameForStep("__a__b__"))
}

func TestValidTableName(t *testing.T) {
	assert.True(t, ValidTableName("step_fetch_rows"))
	assert.True(t, ValidTableName("ABC_123"))
	assert.False(t, ValidTableName("step; drop table runs"))
	assert.False(t, ValidTableName("has space"))
	assert.False(t, ValidTableName(""))
}
