package relgraph

import (
	"errors"
	"testing"
)

func newTestGraph(t *testing.T, backend DirectedBackend, ids ...string) *Graph {
	t.Helper()
	g := NewGraph(WithBackend(backend))
	for _, id := range ids {
		if err := g.AddProject(&Project{ID: id, Name: id}); err != nil {
			t.Fatalf("AddProject(%s) failed: %v", id, err)
		}
	}
	return g
}

func backends() map[string]func() DirectedBackend {
	return map[string]func() DirectedBackend{
		"adjacency": func() DirectedBackend { return NewAdjacencyBackend() },
		"gonum":     func() DirectedBackend { return NewGonumBackend() },
	}
}

func TestAddProjectValidation(t *testing.T) {
	g := NewGraph()

	if err := g.AddProject(&Project{ID: "backend"}); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}
	if err := g.AddProject(&Project{ID: "backend"}); err == nil {
		t.Error("duplicate project id accepted")
	}
	if err := g.AddProject(&Project{ID: "bad-id!"}); err == nil {
		t.Error("malformed project id accepted")
	}
	if err := g.AddProject(&Project{ID: ""}); err == nil {
		t.Error("empty project id accepted")
	}
}

func TestAddRelationshipValidation(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, newBackend(), "a", "b")

			err := g.AddRelationship(&Relationship{From: "a", To: "missing", Type: RelationImport})
			if err == nil {
				t.Error("dangling target accepted")
			}

			err = g.AddRelationship(&Relationship{From: "a", To: "a", Type: RelationImport})
			if err == nil {
				t.Error("self-loop accepted")
			}

			err = g.AddRelationship(&Relationship{From: "a", To: "b", Type: "made_up"})
			if err == nil {
				t.Error("unknown relationship type accepted")
			}

			rel := &Relationship{From: "a", To: "b", Type: RelationAPIClient}
			if err := g.AddRelationship(rel); err != nil {
				t.Fatalf("valid relationship rejected: %v", err)
			}
			if rel.Weight != 1.0 {
				t.Errorf("default weight = %v, want 1.0", rel.Weight)
			}
		})
	}
}

func TestDependencyCycleRejected(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, newBackend(), "a", "b", "c")

			mustAdd := func(from, to string) {
				t.Helper()
				if err := g.AddRelationship(&Relationship{From: from, To: to, Type: RelationDependency}); err != nil {
					t.Fatalf("AddRelationship(%s->%s) failed: %v", from, to, err)
				}
			}
			mustAdd("a", "b")
			mustAdd("b", "c")

			err := g.AddRelationship(&Relationship{From: "c", To: "a", Type: RelationDependency})
			if err == nil {
				t.Fatal("dependency cycle accepted")
			}

			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("error type = %T, want *CycleError", err)
			}
			if len(cycleErr.Cycle) < 3 {
				t.Errorf("cycle too short: %v", cycleErr.Cycle)
			}
			if cycleErr.Cycle[0] != cycleErr.Cycle[len(cycleErr.Cycle)-1] {
				t.Errorf("cycle does not close: %v", cycleErr.Cycle)
			}

			// Rollback: graph must be acyclic again and edge absent.
			if g.HasCircularDependencies() {
				t.Error("graph still cyclic after rejected edge")
			}
			for _, r := range g.RelationshipsFrom("c") {
				if r.To == "a" {
					t.Error("rejected edge still present")
				}
			}
		})
	}
}

func TestNonDependencyCycleAllowed(t *testing.T) {
	g := newTestGraph(t, NewAdjacencyBackend(), "a", "b")

	if err := g.AddRelationship(&Relationship{From: "a", To: "b", Type: RelationAPIClient}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRelationship(&Relationship{From: "b", To: "a", Type: RelationAPIClient}); err != nil {
		t.Errorf("api_client cycle rejected: %v", err)
	}
}

func TestRemoveProjectCascades(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, newBackend(), "a", "b", "c")

			g.AddRelationship(&Relationship{From: "a", To: "b", Type: RelationImport})
			g.AddRelationship(&Relationship{From: "c", To: "b", Type: RelationImport})
			g.AddRelationship(&Relationship{From: "b", To: "c", Type: RelationImport})

			if err := g.RemoveProject("b"); err != nil {
				t.Fatalf("RemoveProject failed: %v", err)
			}

			for _, r := range g.Relationships() {
				if r.From == "b" || r.To == "b" {
					t.Errorf("edge %s->%s survived node removal", r.From, r.To)
				}
			}
			if _, ok := g.GetProject("b"); ok {
				t.Error("removed project still present")
			}
		})
	}
}

func TestTopologicalOrder(t *testing.T) {
	g := newTestGraph(t, NewGonumBackend(), "app", "lib", "core")

	// app depends on lib, lib depends on core.
	g.AddRelationship(&Relationship{From: "app", To: "lib", Type: RelationDependency})
	g.AddRelationship(&Relationship{From: "lib", To: "core", Type: RelationDependency})

	order, ok := g.TopologicalOrder()
	if !ok {
		t.Fatal("TopologicalOrder reported a cycle on an acyclic graph")
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["core"] > pos["lib"] || pos["lib"] > pos["app"] {
		t.Errorf("order %v does not place dependencies first", order)
	}
}

func TestFindCyclesByType(t *testing.T) {
	g := newTestGraph(t, NewAdjacencyBackend(), "a", "b")

	g.AddRelationship(&Relationship{From: "a", To: "b", Type: RelationImport})
	g.AddRelationship(&Relationship{From: "b", To: "a", Type: RelationImport})

	cycles := g.FindCycles(RelationImport)
	if len(cycles) == 0 {
		t.Fatal("FindCycles missed an import cycle")
	}
	first := cycles[0]
	if first[0] != first[len(first)-1] {
		t.Errorf("cycle does not close on itself: %v", first)
	}

	// Only import edges are cyclic; the dependency view stays clean.
	if g.HasCircularDependencies() {
		t.Error("import cycle reported as dependency cycle")
	}
	if _, ok := g.TopologicalOrder(); !ok {
		t.Error("TopologicalOrder failed with no dependency cycle present")
	}
}

func TestDependenciesAndDependents(t *testing.T) {
	g := newTestGraph(t, NewGonumBackend(), "app", "lib", "core", "other")

	g.AddRelationship(&Relationship{From: "app", To: "lib", Type: RelationDependency})
	g.AddRelationship(&Relationship{From: "lib", To: "core", Type: RelationDependency})
	g.AddRelationship(&Relationship{From: "other", To: "app", Type: RelationAPIClient})

	direct := g.Dependencies("app", 1)
	if len(direct) != 1 || direct[0] != "lib" {
		t.Errorf("Dependencies depth 1 = %v, want [lib]", direct)
	}

	deep := g.Dependencies("app", 2)
	if len(deep) != 2 {
		t.Errorf("Dependencies depth 2 = %v, want [core lib]", deep)
	}

	dependents := g.Dependents("app")
	if len(dependents) != 1 || dependents[0] != "other" {
		t.Errorf("Dependents = %v, want [other]", dependents)
	}
}

func TestBoostFactors(t *testing.T) {
	g := newTestGraph(t, NewAdjacencyBackend(), "origin", "direct", "second", "dependent", "similar")

	g.AddRelationship(&Relationship{From: "origin", To: "direct", Type: RelationDependency})
	g.AddRelationship(&Relationship{From: "direct", To: "second", Type: RelationDependency})
	g.AddRelationship(&Relationship{From: "dependent", To: "origin", Type: RelationDependency})
	g.AddRelationship(&Relationship{From: "origin", To: "similar", Type: RelationSemanticSim, Weight: 0.7})

	boosts := g.BoostFactors("origin", 1.5)

	want := map[string]float64{
		"direct":    1.5,
		"second":    1.5 * 0.7, // 1.05
		"dependent": 1.5 * 0.8, // 1.2
		"similar":   1 + 0.5*0.7,
	}
	for id, expected := range want {
		if got := boosts[id]; !almostEqual(got, expected) {
			t.Errorf("boost[%s] = %v, want %v", id, got, expected)
		}
	}
	if _, ok := boosts["origin"]; ok {
		t.Error("origin project received a boost")
	}
}

func TestBoostFactorsSemanticThreshold(t *testing.T) {
	g := newTestGraph(t, NewAdjacencyBackend(), "origin", "weak")
	g.AddRelationship(&Relationship{From: "origin", To: "weak", Type: RelationSemanticSim, Weight: 0.5})

	boosts := g.BoostFactors("origin", 1.5)
	if _, ok := boosts["weak"]; ok {
		t.Errorf("semantic similarity below 0.7 boosted: %v", boosts["weak"])
	}
}

// blindBackend stores topology normally but answers every connectivity
// query with "nothing". If traversals consulted the edge metadata map
// instead of the backend, this stub would go unnoticed.
type blindBackend struct {
	DirectedBackend
}

func (b *blindBackend) Successors(string) []string   { return nil }
func (b *blindBackend) Predecessors(string) []string { return nil }

func TestQueriesAnsweredByBackend(t *testing.T) {
	g := newTestGraph(t, &blindBackend{DirectedBackend: NewAdjacencyBackend()}, "app", "lib")

	if err := g.AddRelationship(&Relationship{From: "app", To: "lib", Type: RelationDependency}); err != nil {
		t.Fatalf("AddRelationship failed: %v", err)
	}

	if deps := g.Dependencies("app", 2); len(deps) != 0 {
		t.Errorf("Dependencies bypassed the backend: %v", deps)
	}
	if deps := g.Dependents("lib"); len(deps) != 0 {
		t.Errorf("Dependents bypassed the backend: %v", deps)
	}
	if boosts := g.BoostFactors("app", 1.5); len(boosts) != 0 {
		t.Errorf("BoostFactors bypassed the backend: %v", boosts)
	}
	if rels := g.RelationshipsTo("lib"); len(rels) != 0 {
		t.Errorf("RelationshipsTo bypassed the backend: %v", rels)
	}
	if cycles := g.FindCycles(); len(cycles) != 0 {
		t.Errorf("FindCycles bypassed the backend: %v", cycles)
	}
}

func TestBackendsAgreeOnTraversals(t *testing.T) {
	build := func(b DirectedBackend) *Graph {
		g := newTestGraph(t, b, "app", "lib", "core", "other")
		g.AddRelationship(&Relationship{From: "app", To: "lib", Type: RelationDependency})
		g.AddRelationship(&Relationship{From: "lib", To: "core", Type: RelationDependency})
		g.AddRelationship(&Relationship{From: "other", To: "app", Type: RelationImport})
		return g
	}
	adj := build(NewAdjacencyBackend())
	gnm := build(NewGonumBackend())

	checks := []struct {
		name string
		get  func(*Graph) []string
	}{
		{"dependencies", func(g *Graph) []string { return g.Dependencies("app", 2) }},
		{"dependents", func(g *Graph) []string { return g.Dependents("app") }},
		{"topo", func(g *Graph) []string { order, _ := g.TopologicalOrder(); return order }},
	}
	for _, c := range checks {
		a, b := c.get(adj), c.get(gnm)
		if len(a) != len(b) {
			t.Errorf("%s: adjacency=%v gonum=%v", c.name, a, b)
			continue
		}
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("%s: adjacency=%v gonum=%v", c.name, a, b)
				break
			}
		}
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
