package dag

import "fmt"

// ExecutionPlan is the immutable output of the Planner: a topological
// order, plus the validated sets of disabled edges and disabled steps
// (spec §3 "ExecutionPlan").
type ExecutionPlan struct {
	Order         []string
	DisabledEdges map[edgeKey]struct{}
	DisabledSteps map[string]struct{}
	Levels        map[string]int
}

// Plan validates the DAG, compiles the disable sets (spec §4.2), and
// produces a topological order via indegree-zero extraction, stable by
// insertion order.
func (d *Dag) Plan() (*ExecutionPlan, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	for name := range d.disabledSteps {
		if _, ok := d.steps[name]; !ok {
			return nil, fmt.Errorf("%w: unknown disabled step %q", ErrInvalidGraph, name)
		}
	}
	for e := range d.disabledEdges {
		tgt, ok := d.steps[e.tgt]
		if !ok {
			return nil, fmt.Errorf("%w: unknown disabled edge target %q", ErrInvalidGraph, e.tgt)
		}
		if _, ok := d.steps[e.src]; !ok {
			return nil, fmt.Errorf("%w: unknown disabled edge source %q", ErrInvalidGraph, e.src)
		}
		found := false
		for _, dep := range tgt.Deps {
			if dep == e.src {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: disabled edge %s->%s is not a dependency", ErrInvalidGraph, e.src, e.tgt)
		}
	}

	order, err := topologicalOrder(d.steps, d.order)
	if err != nil {
		return nil, err
	}

	disabledEdges := make(map[edgeKey]struct{}, len(d.disabledEdges))
	for k := range d.disabledEdges {
		disabledEdges[k] = struct{}{}
	}
	disabledSteps := make(map[string]struct{}, len(d.disabledSteps))
	for k := range d.disabledSteps {
		disabledSteps[k] = struct{}{}
	}

	levels := make(map[string]int, len(order))
	for _, name := range order {
		step := d.steps[name]
		lvl := 0
		for _, dep := range step.Deps {
			if levels[dep]+1 > lvl {
				lvl = levels[dep] + 1
			}
		}
		levels[name] = lvl
	}

	return &ExecutionPlan{
		Order:         order,
		DisabledEdges: disabledEdges,
		DisabledSteps: disabledSteps,
		Levels:        levels,
	}, nil
}

// topologicalOrder extracts indegree-zero nodes in insertion order,
// matching spec §4.2 ("stable by insertion order").
func topologicalOrder(steps map[string]*Step, insertionOrder []string) ([]string, error) {
	indegree := make(map[string]int, len(steps))
	for name := range steps {
		indegree[name] = 0
	}
	for _, step := range steps {
		for range step.Deps {
			indegree[step.Name]++
		}
	}

	queue := make([]string, 0, len(steps))
	for _, name := range insertionOrder {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(steps))
	downstream := make(map[string][]string, len(steps))
	for _, name := range insertionOrder {
		step := steps[name]
		for _, dep := range step.Deps {
			downstream[dep] = append(downstream[dep], step.Name)
		}
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, next := range downstream[node] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, fmt.Errorf("%w: cycle detected during topological sort", ErrInvalidGraph)
	}
	return order, nil
}

// IsDisabledEdge reports whether src->tgt is in the plan's disable set.
func (p *ExecutionPlan) IsDisabledEdge(src, tgt string) bool {
	_, ok := p.DisabledEdges[edgeKey{src, tgt}]
	return ok
}

// IsDisabledStep reports whether name is in the plan's disable set.
func (p *ExecutionPlan) IsDisabledStep(name string) bool {
	_, ok := p.DisabledSteps[name]
	return ok
}
