package api

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"

	"github.com/ninout-run/ninoutgo/layout"
	"github.com/ninout-run/ninoutgo/runlog"
)

// ErrRunNotFound is returned when a run directory or its run.duckdb file
// doesn't exist under the logs directory.
var ErrRunNotFound = errors.New("run not found")

// ErrStepNotFound is returned when a run exists but names no such step.
var ErrStepNotFound = errors.New("step not found")

// repository reads run history from the per-run DuckDB files under a
// logs directory, per spec §5: "Queries go against the per-run file,
// located by convention at <NINOUT_LOGS_DIR>/<run_name>/run.duckdb."
type repository struct {
	logsDir string
}

func newRepository(logsDir string) *repository {
	return &repository{logsDir: logsDir}
}

func (r *repository) runDBPath(runName string) string {
	return filepath.Join(r.logsDir, runName, "run.duckdb")
}

func (r *repository) open(runName string) (*sql.DB, error) {
	path := r.runDBPath(runName)
	if _, err := os.Stat(path); err != nil {
		return nil, ErrRunNotFound
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open run store %s", path)
	}
	return db, nil
}

func (r *repository) listRuns() ([]RunSummary, error) {
	entries, err := os.ReadDir(r.logsDir)
	if os.IsNotExist(err) {
		return []RunSummary{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read logs dir")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	out := make([]RunSummary, 0, len(names))
	for _, name := range names {
		db, err := r.open(name)
		if errors.Is(err, ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summary, err := r.runSummary(db, name)
		db.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

func (r *repository) runSummary(db *sql.DB, runName string) (*RunSummary, error) {
	var runID, dagName, createdAt string
	var stepCount int
	row := db.QueryRow(`SELECT run_id, dag_name, created_at_utc, step_count
		FROM run_metadata ORDER BY created_at_utc DESC LIMIT 1`)
	if err := row.Scan(&runID, &dagName, &createdAt, &stepCount); err != nil {
		return nil, errors.Wrap(err, "scan run_metadata")
	}

	rows, err := db.Query(`SELECT status, count(*) FROM step_runtime WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query step_runtime status summary")
	}
	defer rows.Close()
	statusSummary := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		statusSummary[status] = count
	}

	return &RunSummary{
		RunName:       runName,
		RunID:         runID,
		DagName:       dagName,
		CreatedAtUTC:  createdAt,
		StepCount:     stepCount,
		StatusSummary: statusSummary,
	}, rows.Err()
}

func (r *repository) runDetails(runName string) (*RunDetails, error) {
	db, err := r.open(runName)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var runID, dagName, createdAt string
	var stepCount int
	row := db.QueryRow(`SELECT run_id, dag_name, created_at_utc, step_count
		FROM run_metadata ORDER BY created_at_utc DESC LIMIT 1`)
	if err := row.Scan(&runID, &dagName, &createdAt, &stepCount); err != nil {
		return nil, ErrRunNotFound
	}

	rows, err := db.Query(`
		SELECT d.step_name, d.table_name, r.status, r.duration_ms, r.input_lines,
		       r.output_lines, r.throughput_in_lps, r.throughput_out_lps, d.when_name,
		       d.condition_bool, d.is_branch, d.disabled_self, d.disabled_deps_json,
		       d.deps_json, r.output_text
		FROM step_definition d
		JOIN step_runtime r ON d.run_id = r.run_id AND d.step_name = r.step_name
		WHERE d.run_id = ?
		ORDER BY d.step_name`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query step_definition/step_runtime")
	}
	defer rows.Close()

	var steps []StepSummary
	for rows.Next() {
		var (
			stepName, tableName, status, outputText string
			durationMS, throughputIn, throughputOut  sql.NullFloat64
			inputLines, outputLines                  sql.NullInt64
			whenName, disabledDepsJSON, depsJSON      sql.NullString
			conditionBool                             sql.NullBool
			isBranch, disabledSelf                    bool
		)
		if err := rows.Scan(&stepName, &tableName, &status, &durationMS, &inputLines,
			&outputLines, &throughputIn, &throughputOut, &whenName, &conditionBool,
			&isBranch, &disabledSelf, &disabledDepsJSON, &depsJSON, &outputText); err != nil {
			return nil, err
		}

		summary := StepSummary{
			StepName:     stepName,
			TableName:    tableName,
			Status:       status,
			IsBranch:     isBranch,
			DisabledSelf: disabledSelf,
			OutputText:   outputText,
		}
		if durationMS.Valid {
			summary.DurationMS = &durationMS.Float64
		}
		if inputLines.Valid {
			v := int(inputLines.Int64)
			summary.InputLines = &v
		}
		if outputLines.Valid {
			v := int(outputLines.Int64)
			summary.OutputLines = &v
		}
		if throughputIn.Valid {
			summary.ThroughputInLPS = &throughputIn.Float64
		}
		if throughputOut.Valid {
			summary.ThroughputOutLPS = &throughputOut.Float64
		}
		if whenName.Valid && whenName.String != "" {
			summary.WhenName = &whenName.String
		}
		if conditionBool.Valid {
			summary.ConditionBool = &conditionBool.Bool
		}
		summary.DisabledDeps = decodeStringSlice(disabledDepsJSON)
		summary.Deps = decodeStringSlice(depsJSON)
		steps = append(steps, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &RunDetails{
		RunName:      runName,
		RunID:        runID,
		DagName:      dagName,
		CreatedAtUTC: createdAt,
		StepCount:    stepCount,
		Steps:        steps,
	}, nil
}

func (r *repository) stepRows(runName, stepName string, limit, offset int) (*StepRowsPage, error) {
	details, err := r.runDetails(runName)
	if err != nil {
		return nil, err
	}
	var step *StepSummary
	for i := range details.Steps {
		if details.Steps[i].StepName == stepName {
			step = &details.Steps[i]
			break
		}
	}
	if step == nil {
		return nil, ErrStepNotFound
	}
	if !runlog.ValidTableName(step.TableName) {
		return nil, errors.Errorf("invalid table name %q", step.TableName)
	}

	db, err := r.open(runName)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var total int
	if err := db.QueryRow(`SELECT count(*) FROM ` + step.TableName).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count step rows")
	}

	rows, err := db.Query(
		`SELECT row_id, payload_json FROM `+step.TableName+` ORDER BY row_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query step rows page")
	}
	defer rows.Close()

	var out []StepRowRecord
	for rows.Next() {
		var rowID int64
		var payloadJSON string
		if err := rows.Scan(&rowID, &payloadJSON); err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, errors.Wrap(err, "decode payload_json")
		}
		out = append(out, StepRowRecord{RowID: rowID, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &StepRowsPage{
		RunName:   runName,
		StepName:  stepName,
		TotalRows: total,
		Offset:    offset,
		Limit:     limit,
		Rows:      out,
	}, nil
}

func (r *repository) runGraph(runName string) (*RunGraph, error) {
	details, err := r.runDetails(runName)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(details.Steps))
	levels := make(map[string]int, len(details.Steps))
	depth := make(map[string]int, len(details.Steps))
	byName := make(map[string]StepSummary, len(details.Steps))
	for _, s := range details.Steps {
		order = append(order, s.StepName)
		byName[s.StepName] = s
	}
	for _, name := range order {
		depth[name] = stepLevel(name, byName, map[string]bool{})
	}
	for _, name := range order {
		levels[name] = depth[name]
	}
	positions, width, height := layout.Compute(order, levels)

	nodes := make([]GraphNode, 0, len(details.Steps))
	var edges []GraphEdge
	for _, s := range details.Steps {
		pos := positions[s.StepName]
		nodes = append(nodes, GraphNode{
			StepName:      s.StepName,
			Status:        s.Status,
			Deps:          s.Deps,
			IsBranch:      s.IsBranch,
			WhenName:      s.WhenName,
			ConditionBool: s.ConditionBool,
			DisabledSelf:  s.DisabledSelf,
			DisabledDeps:  s.DisabledDeps,
			X:             pos.X,
			Y:             pos.Y,
		})
		for _, dep := range s.Deps {
			isConditional := s.WhenName != nil && *s.WhenName == dep
			edge := GraphEdge{Source: dep, Target: s.StepName, IsConditional: isConditional}
			if isConditional {
				edge.ConditionBool = s.ConditionBool
			}
			for _, dd := range s.DisabledDeps {
				if dd == dep {
					edge.Disabled = true
				}
			}
			edges = append(edges, edge)
		}
	}

	return &RunGraph{
		RunName:      details.RunName,
		RunID:        details.RunID,
		DagName:      details.DagName,
		CreatedAtUTC: details.CreatedAtUTC,
		Nodes:        nodes,
		Edges:        edges,
		Width:        width,
		Height:       height,
	}, nil
}

// stepLevel recomputes dependency depth from the flattened deps lists the
// per-run store recorded, since the store doesn't persist levels directly.
func stepLevel(name string, byName map[string]StepSummary, visiting map[string]bool) int {
	step, ok := byName[name]
	if !ok || len(step.Deps) == 0 || visiting[name] {
		return 0
	}
	visiting[name] = true
	defer delete(visiting, name)
	max := 0
	for _, dep := range step.Deps {
		if lvl := stepLevel(dep, byName, visiting) + 1; lvl > max {
			max = lvl
		}
	}
	return max
}

func decodeStringSlice(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}
