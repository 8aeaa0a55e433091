package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"NINOUT_MODE", "NINOUT_LOGS_DIR", "NINOUT_ADDR", "NINOUT_PORT", "NINOUT_MAX_WORKERS"} {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "demo", p.Mode)
	assert.Equal(t, "logs", p.LogsDir)
	assert.Equal(t, "", p.Addr)
	assert.Equal(t, 8090, p.Port)
	assert.Equal(t, 0, p.MaxWorkers)
}

func TestFromEnvReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NINOUT_MODE", "prod")
	t.Setenv("NINOUT_PORT", "9100")
	t.Setenv("NINOUT_MAX_WORKERS", "4")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "prod", p.Mode)
	assert.Equal(t, 9100, p.Port)
	assert.Equal(t, 4, p.MaxWorkers)
}

func TestIsDev(t *testing.T) {
	assert.True(t, (&Profile{Mode: "dev"}).IsDev())
	assert.True(t, (&Profile{Mode: "demo"}).IsDev())
	assert.False(t, (&Profile{Mode: "prod"}).IsDev())
}

func TestValidateNormalizesUnknownModeToDemo(t *testing.T) {
	p := &Profile{Mode: "bogus", LogsDir: filepath.Join(t.TempDir(), "logs")}
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func TestValidateCreatesLogsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	p := &Profile{Mode: "dev", LogsDir: dir}
	require.NoError(t, p.Validate())

	info, err := os.Stat(p.LogsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestValidateClampsNegativeMaxWorkers(t *testing.T) {
	p := &Profile{Mode: "dev", LogsDir: t.TempDir(), MaxWorkers: -5}
	require.NoError(t, p.Validate())
	assert.Equal(t, 0, p.MaxWorkers)
}
