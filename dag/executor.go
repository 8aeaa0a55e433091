package dag

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// RunOptions configures one execution of a Dag.
type RunOptions struct {
	// MaxWorkers bounds concurrent step execution. Zero selects
	// runtime.GOMAXPROCS(0).
	MaxWorkers int
	// RaiseOnFail, if true, causes Run to return a *RunFailedError when any
	// step ends failed. A BranchType violation always fails the run,
	// regardless of this flag (spec §7).
	RaiseOnFail bool
	// OnStepUpdate receives every terminal transition (done, failed,
	// skipped), plus periodic row-mode progress ticks with status running.
	// The pending -> running transition itself is not reported. May be nil.
	OnStepUpdate OnStepUpdate
	// SQLEngine backs sql-mode steps. A sql-mode step scheduled to run
	// while this is nil fails the whole run with ErrSQLEngineUnavailable
	// at submission time (spec §4.3.3).
	SQLEngine SQLEngine
	// RowQueueCapacity overrides the row-mode producer/consumer queue
	// size. Zero selects the spec default (1024).
	RowQueueCapacity int
	// ProgressInterval overrides the row-mode progress cadence. Zero
	// selects the spec default (200ms).
	ProgressInterval time.Duration
}

// RunResult is the terminal snapshot of one execution.
type RunResult struct {
	Statuses map[string]StepStatus
	Results  map[string]StepResult
}

// Run validates and plans the Dag, then executes it per spec §4.3: a
// bounded worker pool runs ready steps concurrently, skip propagation and
// branch gating are re-evaluated on every scheduling tick, and every
// terminal transition (and row-mode progress tick) is forwarded to
// opts.OnStepUpdate.
func Run(ctx context.Context, d *Dag, opts RunOptions) (*RunResult, error) {
	plan, err := d.Plan()
	if err != nil {
		return nil, err
	}
	e := newExecution(d, plan, opts)
	return e.run(ctx)
}

type execution struct {
	dag  *Dag
	plan *ExecutionPlan
	opts RunOptions

	mu       sync.Mutex
	status   map[string]StepStatus
	results  map[string]StepResult
	fatalErr error

	sem    *semaphore.Weighted
	doneCh chan string
	wg     sync.WaitGroup
}

func newExecution(d *Dag, plan *ExecutionPlan, opts RunOptions) *execution {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers()
	}
	status := make(map[string]StepStatus, len(plan.Order))
	for _, name := range plan.Order {
		status[name] = StatusPending
	}
	return &execution{
		dag:     d,
		plan:    plan,
		opts:    opts,
		status:  status,
		results: make(map[string]StepResult, len(plan.Order)),
		sem:     semaphore.NewWeighted(int64(workers)),
		doneCh:  make(chan string, len(plan.Order)),
	}
}

func (e *execution) run(parent context.Context) (*RunResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pending := make(map[string]struct{}, len(e.plan.Order))
	for _, name := range e.plan.Order {
		pending[name] = struct{}{}
	}
	running := 0

	for len(pending) > 0 || running > 0 {
		progressed := false

		for _, name := range e.plan.Order {
			if _, ok := pending[name]; !ok {
				continue
			}
			step := e.dag.steps[name]

			if e.shouldSkip(step) {
				e.terminal(step, StatusSkipped, nil, "", 0, 0, 0)
				delete(pending, name)
				progressed = true
				continue
			}
			if !e.canRun(step) {
				continue
			}
			if step.Mode == ModeSQL && e.opts.SQLEngine == nil {
				e.setFatal(errors.Wrapf(ErrSQLEngineUnavailable, "step %q", name))
				cancel()
				e.wg.Wait()
				return e.finish()
			}
			if !e.sem.TryAcquire(1) {
				continue
			}
			delete(pending, name)
			running++
			progressed = true
			e.wg.Add(1)
			go e.execStep(ctx, step)
		}

		if fatal := e.getFatal(); fatal != nil {
			cancel()
			e.wg.Wait()
			return e.finish()
		}

		if !progressed {
			if running == 0 {
				return nil, errors.Wrapf(ErrDeadlock, "dag %q: %d steps pending, none runnable", e.dag.Name, len(pending))
			}
			select {
			case <-e.doneCh:
				running--
			case <-ctx.Done():
				e.wg.Wait()
				return e.finish()
			}
			continue
		}

		// Drain any completions already queued without blocking, so
		// running count stays accurate for the deadlock check.
	drainLoop:
		for {
			select {
			case <-e.doneCh:
				running--
			default:
				break drainLoop
			}
		}
	}

	return e.finish()
}

func (e *execution) finish() (*RunResult, error) {
	if fatal := e.getFatal(); fatal != nil {
		return nil, fatal
	}

	e.mu.Lock()
	statusCopy := make(map[string]StepStatus, len(e.status))
	resultsCopy := make(map[string]StepResult, len(e.results))
	var failed []string
	for name, st := range e.status {
		statusCopy[name] = st
		if st == StatusFailed {
			failed = append(failed, name)
		}
	}
	for name, r := range e.results {
		resultsCopy[name] = r
	}
	e.mu.Unlock()

	if e.opts.RaiseOnFail && len(failed) > 0 {
		return nil, &RunFailedError{Names: failed}
	}
	return &RunResult{Statuses: statusCopy, Results: resultsCopy}, nil
}

// shouldSkip implements the "pending -> skipped" guard of the transition
// table: disabled step, disabled inbound edge, a failed/skipped dep, or a
// resolved branch mismatch.
func (e *execution) shouldSkip(step *Step) bool {
	if e.plan.IsDisabledStep(step.Name) {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dep := range step.Deps {
		if e.plan.IsDisabledEdge(dep, step.Name) {
			return true
		}
		switch e.status[dep] {
		case StatusFailed, StatusSkipped:
			return true
		}
	}
	if step.When != "" && e.status[step.When] == StatusDone {
		branchVal, ok := e.results[step.When].(BranchValue)
		if ok && branchVal.Value != *step.Condition {
			return true
		}
	}
	return false
}

// canRun implements the "pending -> running" guard: every dep done, and
// (for gated steps) the branch already resolved to this step's condition.
func (e *execution) canRun(step *Step) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dep := range step.Deps {
		if e.status[dep] != StatusDone {
			return false
		}
	}
	if step.When != "" {
		branchVal, ok := e.results[step.When].(BranchValue)
		if !ok || branchVal.Value != *step.Condition {
			return false
		}
	}
	return true
}

func (e *execution) snapshot() map[string]StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]StepResult, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

func (e *execution) execStep(ctx context.Context, step *Step) {
	defer e.wg.Done()
	defer e.sem.Release(1)
	defer func() { e.doneCh <- step.Name }()

	e.setStatus(step.Name, StatusRunning)

	start := time.Now()
	snapshot := e.snapshot()

	result, outputText, failErr := e.invoke(ctx, step, snapshot)
	duration := time.Since(start).Seconds()

	inputLines := 0
	for _, dep := range step.Deps {
		inputLines += resultLineCount(snapshot[dep])
	}

	if failErr != nil {
		if se, ok := failErr.(*StepError); ok && se.TypeErr && step.IsBranch {
			e.setFatal(errors.Wrapf(ErrBranchType, "step %q", step.Name))
		}
		e.terminal(step, StatusFailed, nil, outputText, duration, inputLines, 0)
		return
	}

	outputLines := resultLineCount(result)
	if outputLines == 0 && outputText != "" {
		outputLines = countLines(outputText)
	}
	e.terminal(step, StatusDone, result, outputText, duration, inputLines, outputLines)
}

// invoke dispatches by mode and recovers a panicking step body into a
// *StepError so one step's panic never brings down the worker pool.
func (e *execution) invoke(ctx context.Context, step *Step, snapshot map[string]StepResult) (result StepResult, outputText string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StepError{StepName: step.Name, Err: errors.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	buf := &bytes.Buffer{}
	stepCtx := withOutputWriter(ctx, buf)

	switch step.Mode {
	case ModeRow:
		input := flattenRows(step.Deps, snapshot)
		rows, rerr := runRowMode(stepCtx, step.RowFunc, input, e.opts.RowQueueCapacity, e.opts.ProgressInterval, func(n int) {
			e.emitRunning(step.Name, buf.String(), n)
		})
		if rerr != nil {
			return nil, buf.String(), &StepError{StepName: step.Name, Err: rerr}
		}
		return RowsResult(rows), buf.String(), nil

	case ModeSQL:
		query, qerr := step.SQLFunc(stepCtx, snapshot)
		if qerr != nil {
			return nil, buf.String(), &StepError{StepName: step.Name, Err: qerr}
		}
		rows, qerr := e.opts.SQLEngine.Query(stepCtx, snapshot, query)
		if qerr != nil {
			return nil, buf.String(), &StepError{StepName: step.Name, Err: qerr}
		}
		return RowsResult(rows), buf.String(), nil

	default: // ModeTask
		var raw StepResult
		var ferr error
		if step.Func != nil {
			raw, ferr = step.Func(stepCtx, snapshot)
		} else if step.NoArgs != nil {
			raw, ferr = step.NoArgs(stepCtx)
		} else {
			return nil, buf.String(), &StepError{StepName: step.Name, Err: fmt.Errorf("step %q has no function body", step.Name)}
		}
		if ferr != nil {
			return nil, buf.String(), &StepError{StepName: step.Name, Err: ferr}
		}
		if raw == nil {
			raw = EmptyResult{}
		}
		_, isBranch := raw.(BranchValue)
		if step.IsBranch && !isBranch {
			return nil, buf.String(), &StepError{StepName: step.Name, TypeErr: true, Err: fmt.Errorf("branch step %q returned %T, want bool", step.Name, raw)}
		}
		if !step.IsBranch && isBranch {
			return nil, buf.String(), &StepError{StepName: step.Name, TypeErr: true, Err: fmt.Errorf("non-branch step %q returned a bool", step.Name)}
		}
		return raw, buf.String(), nil
	}
}

// validTransitions is the status transition table of spec §4.3.1; any
// observed change outside it is a fatal programming error (ErrInvalidTransition).
var validTransitions = map[StepStatus][]StepStatus{
	StatusPending: {StatusRunning, StatusSkipped},
	StatusRunning: {StatusDone, StatusFailed},
}

func isValidTransition(from, to StepStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (e *execution) setStatus(name string, st StepStatus) {
	e.mu.Lock()
	prev := e.status[name]
	e.status[name] = st
	e.mu.Unlock()

	if !isValidTransition(prev, st) {
		e.setFatal(errors.Wrapf(ErrInvalidTransition, "step %q: %s -> %s", name, prev, st))
	}
}

func (e *execution) terminal(step *Step, st StepStatus, result StepResult, outputText string, durationS float64, inputLines, outputLines int) {
	e.mu.Lock()
	prev := e.status[step.Name]
	e.status[step.Name] = st
	if result != nil {
		e.results[step.Name] = result
	}
	e.mu.Unlock()

	if !isValidTransition(prev, st) {
		e.setFatal(errors.Wrapf(ErrInvalidTransition, "step %q: %s -> %s", step.Name, prev, st))
	}

	if e.opts.OnStepUpdate != nil {
		if err := e.opts.OnStepUpdate(StepUpdate{
			Name:        step.Name,
			Status:      st,
			Result:      result,
			OutputText:  outputText,
			DurationS:   durationS,
			InputLines:  inputLines,
			OutputLines: outputLines,
		}); err != nil {
			e.setFatal(err)
		}
	}
}

func (e *execution) emitRunning(name, outputText string, outputLines int) {
	if e.opts.OnStepUpdate == nil {
		return
	}
	if err := e.opts.OnStepUpdate(StepUpdate{
		Name:        name,
		Status:      StatusRunning,
		OutputText:  outputText,
		OutputLines: outputLines,
	}); err != nil {
		e.setFatal(err)
	}
}

func (e *execution) setFatal(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fatalErr == nil {
		e.fatalErr = err
	}
}

func (e *execution) getFatal() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatalErr
}
