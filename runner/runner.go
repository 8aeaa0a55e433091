// Package runner wires a dag.Dag to the run log: it creates a timestamped
// run directory, opens both storage layers, composes them into a
// runlog.MultiLogger, and drives dag.Run with an OnStepUpdate callback
// that computes throughput and forwards every observation under the
// logger's shared lock. A write failure there aborts the run, since the
// persisted record would otherwise disagree with what actually happened.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ninout-run/ninoutgo/dag"
	"github.com/ninout-run/ninoutgo/runlog"
)

// Options configures one Run call.
type Options struct {
	LogsDir          string
	MaxWorkers       int
	RaiseOnFail      bool
	SQLEngine        dag.SQLEngine
	RowQueueCapacity int
	ProgressInterval time.Duration
}

// Outcome is what Run returns on success: the engine's terminal result
// plus where its run log ended up.
type Outcome struct {
	RunName string
	RunDir  string
	Result  *dag.RunResult
}

// Run executes d, persisting progress to a fresh per-run DuckDB file and
// upserting into the shared central SQLite store, both under
// opts.LogsDir.
func Run(ctx context.Context, d *dag.Dag, opts Options) (*Outcome, error) {
	plan, err := d.Plan()
	if err != nil {
		return nil, err
	}

	logsDir := opts.LogsDir
	if logsDir == "" {
		logsDir = "logs"
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	runName := fmt.Sprintf("%s_%s", d.Name, timestamp)
	runDir := filepath.Join(logsDir, runName)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create run dir %s", runDir)
	}

	steps := stepInfos(d, plan)

	runStore, err := runlog.NewRunStore(filepath.Join(runDir, "run.duckdb"), d.Name, steps)
	if err != nil {
		return nil, err
	}
	defer runStore.Close()

	centralStore, err := runlog.NewCentralStore(filepath.Join(logsDir, "runs.sqlite"), runName, d.Name, steps)
	if err != nil {
		return nil, err
	}
	defer centralStore.Close()

	logger := runlog.NewMultiLogger(runStore, centralStore)

	disabledSelfByName := make(map[string]bool, len(steps))
	disabledDepsByName := make(map[string][]string, len(steps))
	for _, s := range steps {
		disabledSelfByName[s.Name] = s.DisabledSelf
		disabledDepsByName[s.Name] = s.DisabledDeps
	}

	onStepUpdate := func(u dag.StepUpdate) error {
		durationMS := u.DurationS * 1000.0
		var throughputIn, throughputOut float64
		if u.DurationS > 0 {
			throughputIn = float64(u.InputLines) / u.DurationS
			throughputOut = float64(u.OutputLines) / u.DurationS
		}
		meta := runlog.StepMeta{
			Status:           string(u.Status),
			ResultKind:       resultKindOf(u.Result),
			Rows:             rowsOf(u.Result),
			DurationMS:       &durationMS,
			InputLines:       &u.InputLines,
			OutputLines:      &u.OutputLines,
			ThroughputInLPS:  &throughputIn,
			ThroughputOutLPS: &throughputOut,
			OutputText:       u.OutputText,
		}
		if err := logger.LogStep(u.Name, meta); err != nil {
			return &runlog.IOError{StepName: u.Name, Err: err}
		}
		return nil
	}

	result, runErr := dag.Run(ctx, d, dag.RunOptions{
		MaxWorkers:       opts.MaxWorkers,
		RaiseOnFail:      opts.RaiseOnFail,
		OnStepUpdate:     onStepUpdate,
		SQLEngine:        opts.SQLEngine,
		RowQueueCapacity: opts.RowQueueCapacity,
		ProgressInterval: opts.ProgressInterval,
	})
	if runErr != nil {
		return &Outcome{RunName: runName, RunDir: runDir}, runErr
	}
	return &Outcome{RunName: runName, RunDir: runDir, Result: result}, nil
}

func stepInfos(d *dag.Dag, plan *dag.ExecutionPlan) []runlog.StepInfo {
	out := make([]runlog.StepInfo, 0, d.Len())
	for _, step := range d.Steps() {
		var disabledDeps []string
		for _, dep := range step.Deps {
			if plan.IsDisabledEdge(dep, step.Name) {
				disabledDeps = append(disabledDeps, dep)
			}
		}
		sort.Strings(disabledDeps)
		out = append(out, runlog.StepInfo{
			Name:         step.Name,
			Deps:         step.Deps,
			When:         step.When,
			Condition:    step.Condition,
			IsBranch:     step.IsBranch,
			SourceText:   step.SourceText,
			DisabledDeps: disabledDeps,
			DisabledSelf: plan.IsDisabledStep(step.Name),
		})
	}
	return out
}

func resultKindOf(r dag.StepResult) string {
	switch r.(type) {
	case nil, dag.EmptyResult:
		return "none"
	case dag.RowsValue:
		return "list"
	default:
		return "scalar"
	}
}

func rowsOf(r dag.StepResult) []dag.Row {
	switch v := r.(type) {
	case dag.RowValue:
		return []dag.Row{v.Row}
	case dag.RowsValue:
		return v.Rows
	default:
		return nil
	}
}
