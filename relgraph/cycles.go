package relgraph

import "sort"

// FindCycles returns every elementary cycle found by depth-first search
// over edges matching the type filter (empty filter = all types). Each
// cycle is reported as the node sequence from the repeat point, with
// the repeated node appearing first and last.
func (g *Graph) FindCycles(types ...RelationType) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCyclesLocked(types...)
}

// findCycleLocked returns the first cycle found, or nil.
func (g *Graph) findCycleLocked(types ...RelationType) []string {
	cycles := g.findCyclesLocked(types...)
	if len(cycles) == 0 {
		return nil
	}
	return cycles[0]
}

func (g *Graph) findCyclesLocked(types ...RelationType) [][]string {
	const (
		white = iota // unvisited
		grey         // on the recursion stack
		black        // fully explored
	)

	roots := g.backend.Nodes()
	sort.Strings(roots)

	color := make(map[string]int, len(roots))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)

		for _, next := range g.successorsLocked(id, types...) {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				// Back-edge: slice the stack from the repeat point.
				for i, n := range stack {
					if n == next {
						cycle := make([]string, 0, len(stack)-i+1)
						cycle = append(cycle, stack[i:]...)
						cycle = append(cycle, next)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range roots {
		if color[id] == white {
			visit(id)
		}
	}

	return cycles
}

// HasCircularDependencies reports whether any DEPENDENCY cycle exists.
func (g *Graph) HasCircularDependencies() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked(RelationDependency) != nil
}

// TopologicalOrder returns one valid build order over DEPENDENCY edges
// using Kahn's algorithm, dependencies before dependents. The second
// return is false when cycles make the order undefined.
func (g *Graph) TopologicalOrder() ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// An edge A->B means "A depends on B", so a project with no
	// unsatisfied outgoing DEPENDENCY edges can be emitted.
	nodes := g.backend.Nodes()
	pending := make(map[string]int, len(nodes))
	for _, id := range nodes {
		pending[id] = len(g.successorsLocked(id, RelationDependency))
	}

	queue := make([]string, 0, len(pending))
	for id, deg := range pending {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(pending))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dependent := range g.predecessorsLocked(id, RelationDependency) {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		sort.Strings(queue)
	}

	if len(order) != len(pending) {
		return nil, false
	}
	return order, true
}
