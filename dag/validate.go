package dag

import "fmt"

// Validate runs the structural and semantic checks of spec §4.1: every
// dep names an existing step, mode is one of the enumerated set,
// condition/when are set together and condition is boolean, and the
// graph is acyclic. Runs in O(V+E) via recursive three-color DFS.
func (d *Dag) Validate() error {
	for _, step := range d.steps {
		if !step.Mode.valid() {
			return fmt.Errorf("%w: step %q has invalid mode %q", ErrInvalidGraph, step.Name, step.Mode)
		}
		for _, dep := range step.Deps {
			if _, ok := d.steps[dep]; !ok {
				return fmt.Errorf("%w: step %q depends on unknown step %q", ErrInvalidGraph, step.Name, dep)
			}
		}
		if step.When == "" && step.Condition != nil {
			return fmt.Errorf("%w: step %q has condition set without when", ErrInvalidGraph, step.Name)
		}
		if step.When != "" && step.Condition == nil {
			return fmt.Errorf("%w: step %q has when set without condition", ErrInvalidGraph, step.Name)
		}
		if step.When != "" {
			if _, ok := d.steps[step.When]; !ok {
				return fmt.Errorf("%w: step %q has when referring to unknown step %q", ErrInvalidGraph, step.Name, step.When)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.steps))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("%w: cycle detected involving %q", ErrInvalidGraph, name)
		}
		color[name] = gray
		for _, dep := range d.steps[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for name := range d.steps {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
