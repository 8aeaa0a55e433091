package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// CentralStore aggregates rows across every run in one shared file
// (spec §4.4, "Central store"): schema mirrors the per-run store, but
// keys are composite (run_name, run_id, step_name[, row_id]), and the
// step-rows table is a single table rather than one per step.
type CentralStore struct {
	db      *sql.DB
	runName string
	runID   string
	dagName string
}

// NewCentralStore opens (creating if absent) the shared SQLite file at
// path in WAL mode, and writes the initial rows for runName/dagName.
func NewCentralStore(path, runName, dagName string, steps []StepInfo) (*CentralStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create central store dir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open central store at %s", path)
	}
	// Single connection: SQLite handles concurrency via WAL, not via the
	// Go connection pool. A second pooled connection serializes on SQLite's
	// own lock anyway, so it only adds pool-management overhead.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set pragma %q", pragma)
		}
	}

	now := time.Now().UTC()
	s := &CentralStore{
		db:      db,
		runName: runName,
		runID:   now.Format("20060102_150405") + fmt.Sprintf("_%06d", now.Nanosecond()/1000),
		dagName: dagName,
	}
	if err := s.init(steps); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CentralStore) init(steps []StepInfo) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS run_metadata (
			run_name TEXT, run_id TEXT, dag_name TEXT, created_at_utc TEXT, step_count INTEGER,
			PRIMARY KEY (run_name, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS step_definition (
			run_name TEXT, run_id TEXT, step_name TEXT, deps_json TEXT, when_name TEXT,
			condition_bool INTEGER, is_branch INTEGER, code_text TEXT, disabled_deps_json TEXT,
			disabled_self INTEGER, PRIMARY KEY (run_name, run_id, step_name)
		)`,
		`CREATE TABLE IF NOT EXISTS step_runtime (
			run_name TEXT, run_id TEXT, step_name TEXT, status TEXT, duration_ms REAL,
			input_lines INTEGER, output_lines INTEGER, throughput_in_lps REAL,
			throughput_out_lps REAL, output_text TEXT, result_kind TEXT, updated_at_utc TEXT,
			PRIMARY KEY (run_name, run_id, step_name)
		)`,
		`CREATE TABLE IF NOT EXISTS step_rows (
			run_name TEXT, run_id TEXT, step_name TEXT, row_id INTEGER, payload_json TEXT,
			PRIMARY KEY (run_name, run_id, step_name, row_id)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "create central store tables")
		}
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO run_metadata (run_name, run_id, dag_name, created_at_utc, step_count)
		 VALUES (?, ?, ?, ?, ?)`,
		s.runName, s.runID, s.dagName, createdAt, len(steps),
	); err != nil {
		return errors.Wrap(err, "insert run_metadata")
	}

	for _, step := range steps {
		depsJSON, _ := json.Marshal(step.Deps)
		disabledJSON, _ := json.Marshal(step.DisabledDeps)
		if _, err := s.db.Exec(
			`INSERT OR REPLACE INTO step_definition (
				run_name, run_id, step_name, deps_json, when_name, condition_bool,
				is_branch, code_text, disabled_deps_json, disabled_self
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runName, s.runID, step.Name, string(depsJSON), step.When, boolToInt(step.Condition),
			boolInt(step.IsBranch), step.SourceText, string(disabledJSON), boolInt(step.DisabledSelf),
		); err != nil {
			return errors.Wrapf(err, "insert step_definition for %s", step.Name)
		}
		if _, err := s.db.Exec(
			`INSERT OR REPLACE INTO step_runtime (
				run_name, run_id, step_name, status, output_text, result_kind, updated_at_utc
			) VALUES (?, ?, ?, 'pending', '', 'none', ?)`,
			s.runName, s.runID, step.Name, createdAt,
		); err != nil {
			return errors.Wrapf(err, "insert step_runtime for %s", step.Name)
		}
	}
	return nil
}

// LogStep mirrors RunStore.LogStep against the composite-keyed schema.
func (s *CentralStore) LogStep(stepName string, meta StepMeta) error {
	if meta.Status == "done" || meta.Status == "failed" || meta.Rows != nil {
		if _, err := s.db.Exec(
			`DELETE FROM step_rows WHERE run_name = ? AND run_id = ? AND step_name = ?`,
			s.runName, s.runID, stepName,
		); err != nil {
			return errors.Wrap(err, "delete prior step_rows")
		}
		for i, row := range meta.Rows {
			payload, err := json.Marshal(row)
			if err != nil {
				return errors.Wrapf(err, "marshal row %d of %s", i+1, stepName)
			}
			if _, err := s.db.Exec(
				`INSERT OR REPLACE INTO step_rows (run_name, run_id, step_name, row_id, payload_json)
				 VALUES (?, ?, ?, ?, ?)`,
				s.runName, s.runID, stepName, i+1, string(payload),
			); err != nil {
				return errors.Wrapf(err, "insert row %d of %s", i+1, stepName)
			}
		}
	}

	updatedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO step_runtime (
			run_name, run_id, step_name, status, duration_ms, input_lines, output_lines,
			throughput_in_lps, throughput_out_lps, output_text, result_kind, updated_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runName, s.runID, stepName, meta.Status, meta.DurationMS, meta.InputLines, meta.OutputLines,
		meta.ThroughputInLPS, meta.ThroughputOutLPS, meta.OutputText, meta.ResultKind, updatedAt,
	); err != nil {
		return errors.Wrap(err, "upsert step_runtime")
	}
	return nil
}

// Close releases the underlying SQLite connection.
func (s *CentralStore) Close() error {
	return s.db.Close()
}

// RunID returns the identifier assigned to this run at open time.
func (s *CentralStore) RunID() string { return s.runID }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToInt(b *bool) any {
	if b == nil {
		return nil
	}
	return boolInt(*b)
}
