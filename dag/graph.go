package dag

import (
	"fmt"
	"sort"
)

// Dag is a container of immutable Step descriptors plus user-declared
// disable overrides. Per spec §9 "Decorator-style registration", the
// engine exposes a direct builder instead of decorators; a fluent sugar
// wrapper can sit on top without the engine itself depending on it.
type Dag struct {
	Name  string
	steps map[string]*Step
	order []string // insertion order, for stable iteration

	disabledEdges map[edgeKey]struct{}
	disabledSteps map[string]struct{}
}

type edgeKey struct{ src, tgt string }

// NewDag creates an empty DAG with the given name (used as the run
// directory prefix).
func NewDag(name string) *Dag {
	return &Dag{
		Name:          name,
		steps:         make(map[string]*Step),
		disabledEdges: make(map[edgeKey]struct{}),
		disabledSteps: make(map[string]struct{}),
	}
}

// AddStepOpts configures a step registration.
type AddStepOpts struct {
	Deps      []string
	When      string
	Condition *bool
	IsBranch  bool
	Mode      StepMode
	Source    string
}

// AddStep registers a step. If opts.When is set, it is auto-added to Deps
// (per spec §3, "when ∈ deps (auto-added)"). AddStep does not check that
// When and Condition are set together; Validate (and so Plan) rejects a
// step that has one without the other. Mode defaults to ModeTask. An
// empty opts.Source is stored as the sentinel "<source unavailable>".
func (d *Dag) AddStep(name string, fn StepFunc, opts AddStepOpts) error {
	if name == "" {
		return fmt.Errorf("%w: step name cannot be empty", ErrInvalidGraph)
	}
	if _, exists := d.steps[name]; exists {
		return fmt.Errorf("%w: duplicate step name %q", ErrInvalidGraph, name)
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeTask
	}

	deps := append([]string(nil), opts.Deps...)
	if opts.When != "" {
		found := false
		for _, dname := range deps {
			if dname == opts.When {
				found = true
				break
			}
		}
		if !found {
			deps = append(deps, opts.When)
		}
	}

	source := opts.Source
	if source == "" {
		source = "<source unavailable>"
	}

	step := &Step{
		Name:       name,
		Deps:       deps,
		When:       opts.When,
		Condition:  opts.Condition,
		IsBranch:   opts.IsBranch,
		Mode:       mode,
		Func:       fn,
		SourceText: source,
	}
	d.steps[name] = step
	d.order = append(d.order, name)
	return nil
}

// AddSourceStep registers a task-mode step that reads no upstream results,
// the idiomatic Go shape for what spec §4.3.2 describes as a step function
// invoked with no arguments.
func (d *Dag) AddSourceStep(name string, fn StepFuncNoArgs, opts AddStepOpts) error {
	if err := d.AddStep(name, nil, opts); err != nil {
		return err
	}
	d.steps[name].NoArgs = fn
	return nil
}

// AddRowStep registers a row-mode step whose function is invoked once per
// input row (see spec §4.3.3).
func (d *Dag) AddRowStep(name string, fn RowFunc, opts AddStepOpts) error {
	opts.Mode = ModeRow
	if err := d.AddStep(name, nil, opts); err != nil {
		return err
	}
	d.steps[name].RowFunc = fn
	return nil
}

// AddSQLStep registers a sql-mode step whose function returns the query
// text to run against the embedded engine.
func (d *Dag) AddSQLStep(name string, fn SQLFunc, opts AddStepOpts) error {
	opts.Mode = ModeSQL
	if err := d.AddStep(name, nil, opts); err != nil {
		return err
	}
	d.steps[name].SQLFunc = fn
	return nil
}

// Step returns the step descriptor for name, if registered.
func (d *Dag) Step(name string) (*Step, bool) {
	s, ok := d.steps[name]
	return s, ok
}

// Steps returns all step descriptors, in insertion order.
func (d *Dag) Steps() []*Step {
	out := make([]*Step, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.steps[name])
	}
	return out
}

// Len returns the number of registered steps.
func (d *Dag) Len() int { return len(d.steps) }

// DisableEdge marks the dependency edge src->tgt as disabled. Validity
// (both names exist, src is actually a dep of tgt) is checked lazily by
// the Planner so that edges can be declared before all steps exist.
func (d *Dag) DisableEdge(src, tgt string) {
	d.disabledEdges[edgeKey{src, tgt}] = struct{}{}
}

// EnableEdge reverses a prior DisableEdge.
func (d *Dag) EnableEdge(src, tgt string) {
	delete(d.disabledEdges, edgeKey{src, tgt})
}

// DisableStep marks a step name as force-disabled.
func (d *Dag) DisableStep(name string) {
	d.disabledSteps[name] = struct{}{}
}

// EnableStep reverses a prior DisableStep.
func (d *Dag) EnableStep(name string) {
	delete(d.disabledSteps, name)
}

// DisabledEdges returns the current set of disabled edges, sorted for
// determinism.
func (d *Dag) DisabledEdges() [][2]string {
	out := make([][2]string, 0, len(d.disabledEdges))
	for k := range d.disabledEdges {
		out = append(out, [2]string{k.src, k.tgt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// DisabledSteps returns the current set of force-disabled step names,
// sorted for determinism.
func (d *Dag) DisabledSteps() []string {
	out := make([]string, 0, len(d.disabledSteps))
	for k := range d.disabledSteps {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
