package dag

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidGraph is returned by the validator or planner when a DAG fails
// structural or semantic checks before any step has run.
var ErrInvalidGraph = errors.New("invalid graph")

// ErrDeadlock indicates the scheduler made no progress with running empty
// and pending non-empty. This should only happen if a hand-rolled
// ExecutionPlan violates the topological-order invariant.
var ErrDeadlock = errors.New("deadlock detected")

// ErrInvalidTransition indicates the scheduler observed a status change
// outside the table in spec §4.3.1. It is a programming error, never a
// user-data error.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrBranchType is returned when a branch step's payload is not a bool.
// It always fails the whole run: Run returns an error wrapping
// ErrBranchType whatever RunOptions.RaiseOnFail says.
var ErrBranchType = errors.New("branch step did not return a bool")

// StepError wraps a per-step failure, distinguishing a bad return value
// (StepTypeError) from a panic/error raised by the step body
// (StepException). Either kind only fails that one step.
type StepError struct {
	StepName string
	TypeErr  bool
	Err      error
}

func (e *StepError) Error() string {
	kind := "step exception"
	if e.TypeErr {
		kind = "step type error"
	}
	return fmt.Sprintf("%s in %q: %v", kind, e.StepName, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RunFailedError aggregates the names of every step that ended failed,
// raised at run end when raise_on_fail is true and at least one failed.
type RunFailedError struct {
	Names []string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run failed: steps %v did not complete", e.Names)
}
