// Package layout computes node positions for the graph view the read API
// exposes to the dashboard: one column per dependency level, stacked rows
// within a level, in insertion order (spec §5, "GET /runs/{run_name}/graph").
package layout

import "sort"

const (
	xGap   = 200
	yGap   = 120
	nodeW  = 140
	nodeH  = 48
	margin = 40
)

// Position is a node's top-left pixel coordinate in the graph view.
type Position struct {
	X int
	Y int
}

// Compute lays out nodes by level (as produced by dag.ExecutionPlan.Levels)
// and within-level order (the order slice, e.g. the plan's topological
// order, used to break ties deterministically). It returns each node's
// position plus the canvas's required width and height.
func Compute(order []string, levels map[string]int) (positions map[string]Position, width, height int) {
	grouped := make(map[int][]string)
	for _, name := range order {
		lvl := levels[name]
		grouped[lvl] = append(grouped[lvl], name)
	}

	lvls := make([]int, 0, len(grouped))
	for lvl := range grouped {
		lvls = append(lvls, lvl)
	}
	sort.Ints(lvls)

	positions = make(map[string]Position, len(order))
	for _, lvl := range lvls {
		nodes := grouped[lvl]
		for idx, name := range nodes {
			x := margin + lvl*xGap
			y := margin + idx*yGap
			positions[name] = Position{X: x, Y: y}
			if x+nodeW+margin > width {
				width = x + nodeW + margin
			}
			if y+nodeH+margin > height {
				height = y + nodeH + margin
			}
		}
	}
	return positions, width, height
}
