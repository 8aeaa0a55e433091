// Package sqlengine implements the process-wide embedded SQL engine that
// sql-mode steps query against (spec §4.3.3): every prior step's result
// is exposed as an addressable table, named after the step, before the
// step's query string runs.
package sqlengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"

	"github.com/ninout-run/ninoutgo/dag"
	"github.com/ninout-run/ninoutgo/runlog"
)

// Engine is an in-memory DuckDB database used purely as a query surface
// over in-flight step results; it never touches the run log files.
type Engine struct {
	db     *sql.DB
	synced map[string]struct{}
}

// New opens a fresh in-memory DuckDB instance.
func New() (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory duckdb engine")
	}
	return &Engine{db: db, synced: make(map[string]struct{})}, nil
}

// Query materializes every entry of snapshot that hasn't already been
// synced as a table (named via runlog.TableNameForStep, so it matches
// what the run log's table names look like), then executes query and
// returns its rows.
func (e *Engine) Query(ctx context.Context, snapshot map[string]dag.StepResult, query string) ([]dag.Row, error) {
	for name, result := range snapshot {
		if _, done := e.synced[name]; done {
			continue
		}
		if err := e.materialize(ctx, name, result); err != nil {
			return nil, errors.Wrapf(err, "materialize step %q as table", name)
		}
		e.synced[name] = struct{}{}
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "execute sql-mode query")
	}
	defer rows.Close()
	return scanRows(rows)
}

func (e *Engine) materialize(ctx context.Context, name string, result dag.StepResult) error {
	table := runlog.TableNameForStep(name)
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return err
	}
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (row_id BIGINT, payload_json VARCHAR)`, table,
	)); err != nil {
		return err
	}

	var rowsToInsert []dag.Row
	switch v := result.(type) {
	case dag.RowValue:
		rowsToInsert = []dag.Row{v.Row}
	case dag.RowsValue:
		rowsToInsert = v.Rows
	}
	for i, r := range rowsToInsert {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := e.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (row_id, payload_json) VALUES (?, ?)`, table),
			i+1, string(payload),
		); err != nil {
			return err
		}
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]dag.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []dag.Row
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(dag.Row, len(cols))
		for i, col := range cols {
			row[col] = dest[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the underlying DuckDB connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

var _ dag.SQLEngine = (*Engine)(nil)
