package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ninout-run/ninoutgo/internal/version"
)

// Profile is configuration for the ninoutd engine process: where the run
// log lives, how large the worker pool is, and where the read API binds.
type Profile struct {
	Mode       string // demo | dev | prod
	LogsDir    string // NINOUT_LOGS_DIR
	Addr       string
	Port       int
	MaxWorkers int
	Version    string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("NINOUT_MODE", "demo")
	p.LogsDir = getEnvOrDefault("NINOUT_LOGS_DIR", "logs")
	p.Addr = getEnvOrDefault("NINOUT_ADDR", "")
	p.Port = getEnvOrDefaultInt("NINOUT_PORT", 8090)
	p.MaxWorkers = getEnvOrDefaultInt("NINOUT_MAX_WORKERS", 0)
	p.Version = version.Version
}

func checkLogsDir(logsDir string) (string, error) {
	if !filepath.IsAbs(logsDir) {
		absDir, err := filepath.Abs(logsDir)
		if err != nil {
			return "", err
		}
		logsDir = absDir
	}
	logsDir = strings.TrimRight(logsDir, "\\/")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create logs directory %s", logsDir)
	}
	return logsDir, nil
}

// Validate normalizes Mode, ensures the logs directory exists (creating
// it under a platform default when running in prod mode without one
// configured), and resolves MaxWorkers to a usable bound.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.LogsDir == "" {
		if runtime.GOOS == "windows" {
			p.LogsDir = filepath.Join(os.Getenv("ProgramData"), "ninoutd", "logs")
		} else {
			p.LogsDir = "/var/opt/ninoutd/logs"
		}
	}

	logsDir, err := checkLogsDir(p.LogsDir)
	if err != nil {
		slog.Error("failed to prepare logs directory", slog.String("logs_dir", p.LogsDir), slog.String("error", err.Error()))
		return err
	}
	p.LogsDir = logsDir

	if p.MaxWorkers < 0 {
		p.MaxWorkers = 0
	}
	return nil
}
