package relgraph

import "sort"

// dependencyTypes are the edge kinds that express a directional
// dependency between projects. Semantic similarity is excluded: it is
// a closeness signal, not a dependency.
var dependencyTypes = []RelationType{
	RelationImport,
	RelationAPIClient,
	RelationSharedDatabase,
	RelationEventDriven,
	RelationDependency,
}

// Dependencies returns the union of direct dependencies and
// dependencies-of-dependencies up to depth hops. Depth <= 0 defaults
// to 1.
func (g *Graph) Dependencies(id string, depth int) []string {
	if depth <= 0 {
		depth = 1
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{id: true}
	frontier := []string{id}
	var out []string

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			for _, dep := range g.successorsLocked(node, dependencyTypes...) {
				if seen[dep] {
					continue
				}
				seen[dep] = true
				out = append(out, dep)
				next = append(next, dep)
			}
		}
		frontier = next
	}

	sort.Strings(out)
	return out
}

// Dependents returns the projects with a direct dependency edge
// pointing at id (one hop only).
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.predecessorsLocked(id, dependencyTypes...)
}

// BoostFactors computes per-project ranking multipliers relative to a
// source project:
//
//	direct dependencies            -> factor
//	depth-2 dependencies           -> factor * 0.7
//	direct dependents              -> factor * 0.8
//	semantic similarity (w >= 0.7) -> 1 + (factor-1) * w
//
// A project matched by several rules keeps the strongest multiplier.
// The map is recomputed from the live graph on every call; ranking
// stays correct after graph edits at the cost of recomputation.
func (g *Graph) BoostFactors(source string, factor float64) map[string]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	boosts := make(map[string]float64)
	apply := func(id string, boost float64) {
		if boost > boosts[id] {
			boosts[id] = boost
		}
	}

	direct := g.successorsLocked(source, dependencyTypes...)
	directSet := make(map[string]bool, len(direct))
	for _, dep := range direct {
		directSet[dep] = true
		apply(dep, factor)
	}

	for _, dep := range direct {
		for _, second := range g.successorsLocked(dep, dependencyTypes...) {
			if second == source || directSet[second] {
				continue
			}
			apply(second, factor*0.7)
		}
	}

	for _, dependent := range g.predecessorsLocked(source, dependencyTypes...) {
		apply(dependent, factor*0.8)
	}

	// Semantic similarity is treated as bidirectional closeness.
	for _, to := range g.backend.Successors(source) {
		for _, r := range g.edges[source][to] {
			if r.Type == RelationSemanticSim && r.Weight >= 0.7 {
				apply(to, 1+(factor-1)*r.Weight)
			}
		}
	}
	for _, from := range g.backend.Predecessors(source) {
		for _, r := range g.edges[from][source] {
			if r.Type == RelationSemanticSim && r.Weight >= 0.7 {
				apply(from, 1+(factor-1)*r.Weight)
			}
		}
	}

	return boosts
}
