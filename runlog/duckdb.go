package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"
)

// RunStore is the per-run embedded columnar store: one DuckDB file per
// run, holding run metadata, step definitions, live step runtime rows,
// and one output table per step (spec §4.4, "Per-run store").
type RunStore struct {
	db       *sql.DB
	runID    string
	dagName  string
	tableMap map[string]string
}

// NewRunStore opens (creating if absent) the DuckDB file at path and
// writes the initial run_metadata/step_definition/step_runtime rows for
// every step, all marked pending.
func NewRunStore(path, dagName string, steps []StepInfo) (*RunStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open duckdb run store at %s", path)
	}

	s := &RunStore{
		db:       db,
		runID:    time.Now().UTC().Format("20060102_150405") + "_" + uuid.New().String()[:8],
		dagName:  dagName,
		tableMap: make(map[string]string, len(steps)),
	}
	if err := s.init(steps); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) init(steps []StepInfo) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS run_metadata (
			run_id VARCHAR, dag_name VARCHAR, created_at_utc TIMESTAMP, step_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS step_definition (
			run_id VARCHAR, step_name VARCHAR, table_name VARCHAR, deps_json VARCHAR,
			when_name VARCHAR, condition_bool BOOLEAN, is_branch BOOLEAN, code_text VARCHAR,
			disabled_deps_json VARCHAR, disabled_self BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS step_runtime (
			run_id VARCHAR, step_name VARCHAR, status VARCHAR, duration_ms DOUBLE,
			input_lines INTEGER, output_lines INTEGER, throughput_in_lps DOUBLE,
			throughput_out_lps DOUBLE, output_text VARCHAR, result_kind VARCHAR,
			updated_at_utc TIMESTAMP
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "create run log tables")
		}
	}

	createdAt := time.Now().UTC()
	if _, err := s.db.Exec(
		`INSERT INTO run_metadata VALUES (?, ?, ?, ?)`,
		s.runID, s.dagName, createdAt, len(steps),
	); err != nil {
		return errors.Wrap(err, "insert run_metadata")
	}

	for _, step := range steps {
		tableName := TableNameForStep(step.Name)
		s.tableMap[step.Name] = tableName

		if _, err := s.db.Exec(fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (row_id BIGINT, payload_json VARCHAR)`, tableName,
		)); err != nil {
			return errors.Wrapf(err, "create step table %s", tableName)
		}

		depsJSON, _ := json.Marshal(step.Deps)
		disabledJSON, _ := json.Marshal(step.DisabledDeps)
		if _, err := s.db.Exec(
			`INSERT INTO step_definition VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, step.Name, tableName, string(depsJSON), step.When,
			step.Condition, step.IsBranch, step.SourceText, string(disabledJSON), step.DisabledSelf,
		); err != nil {
			return errors.Wrapf(err, "insert step_definition for %s", step.Name)
		}
		if _, err := s.db.Exec(
			`INSERT INTO step_runtime (run_id, step_name, status, output_text, result_kind, updated_at_utc)
			 VALUES (?, ?, 'pending', '', 'none', ?)`,
			s.runID, step.Name, createdAt,
		); err != nil {
			return errors.Wrapf(err, "insert step_runtime for %s", step.Name)
		}
	}
	return nil
}

// LogStep upserts the runtime row for stepName (delete-then-insert), and
// on a terminal status or a non-nil result, truncates and repopulates
// that step's output table with dense 1-based row_ids.
func (s *RunStore) LogStep(stepName string, meta StepMeta) error {
	tableName, ok := s.tableMap[stepName]
	if !ok {
		return errors.Errorf("unknown step %q", stepName)
	}

	if meta.Status == "done" || meta.Status == "failed" || meta.Rows != nil {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s`, tableName)); err != nil {
			return errors.Wrapf(err, "truncate %s", tableName)
		}
		for i, row := range meta.Rows {
			payload, err := json.Marshal(row)
			if err != nil {
				return errors.Wrapf(err, "marshal row %d of %s", i+1, stepName)
			}
			if _, err := s.db.Exec(
				fmt.Sprintf(`INSERT INTO %s (row_id, payload_json) VALUES (?, ?)`, tableName),
				i+1, string(payload),
			); err != nil {
				return errors.Wrapf(err, "insert row %d of %s", i+1, stepName)
			}
		}
	}

	if _, err := s.db.Exec(
		`DELETE FROM step_runtime WHERE run_id = ? AND step_name = ?`, s.runID, stepName,
	); err != nil {
		return errors.Wrap(err, "delete prior step_runtime row")
	}
	if _, err := s.db.Exec(
		`INSERT INTO step_runtime (
			run_id, step_name, status, duration_ms, input_lines, output_lines,
			throughput_in_lps, throughput_out_lps, output_text, result_kind, updated_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, stepName, meta.Status, meta.DurationMS, meta.InputLines, meta.OutputLines,
		meta.ThroughputInLPS, meta.ThroughputOutLPS, meta.OutputText, meta.ResultKind, time.Now().UTC(),
	); err != nil {
		return errors.Wrap(err, "insert step_runtime")
	}
	return nil
}

// Close releases the underlying DuckDB connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// RunID returns the timestamp-derived identifier assigned at open time.
func (s *RunStore) RunID() string { return s.runID }
