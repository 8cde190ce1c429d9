// Package relgraph maintains the directed, typed, weighted relationship
// graph between projects in a workspace. It backs cross-project search
// ranking (boost factors), workspace validation (dependency cycles),
// and operator tooling (node-link and DOT export).
package relgraph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// RelationType classifies a relationship edge between two projects.
type RelationType string

const (
	RelationImport         RelationType = "import"
	RelationAPIClient      RelationType = "api_client"
	RelationSharedDatabase RelationType = "shared_database"
	RelationEventDriven    RelationType = "event_driven"
	RelationSemanticSim    RelationType = "semantic_similarity"
	RelationDependency     RelationType = "dependency"
)

// ValidRelationType reports whether t is one of the six edge kinds.
func ValidRelationType(t RelationType) bool {
	switch t {
	case RelationImport, RelationAPIClient, RelationSharedDatabase,
		RelationEventDriven, RelationSemanticSim, RelationDependency:
		return true
	}
	return false
}

// Project is the metadata node stored per registered project.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Type      string    `json:"type,omitempty"`
	Languages []string  `json:"languages,omitempty"`
	Framework string    `json:"framework,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Indexed   bool      `json:"indexed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relationship is a directed, typed, weighted edge between projects.
type Relationship struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Type        RelationType `json:"type"`
	Weight      float64      `json:"weight"`
	Description string       `json:"description,omitempty"`
	Evidence    []string     `json:"evidence,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CycleError reports a dependency cycle as the node sequence from the
// repeat point (first and last entries are the same project).
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidProjectID reports whether id is a legal project identifier.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Graph holds project nodes and their typed relationships. Connectivity
// queries go through the pluggable DirectedBackend; typed edge data
// lives beside it. Safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	backend  DirectedBackend
	projects map[string]*Project
	edges    map[string]map[string][]*Relationship // from -> to -> edges
}

// Option configures a Graph at construction.
type Option func(*Graph)

// WithBackend selects the directed-graph backend.
func WithBackend(b DirectedBackend) Option {
	return func(g *Graph) {
		g.backend = b
	}
}

// NewGraph creates an empty relationship graph. The adjacency-map
// backend is the default; pass WithBackend(NewGonumBackend()) for the
// library-backed one.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		projects: make(map[string]*Project),
		edges:    make(map[string]map[string][]*Relationship),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.backend == nil {
		g.backend = NewAdjacencyBackend()
	}
	return g
}

// AddProject registers a project node.
func (g *Graph) AddProject(p *Project) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if !ValidProjectID(p.ID) {
		return fmt.Errorf("invalid project id %q (alphanumeric and underscore only)", p.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.projects[p.ID]; exists {
		return fmt.Errorf("project %q already registered", p.ID)
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	g.projects[p.ID] = p
	g.backend.AddNode(p.ID)
	return nil
}

// RemoveProject deletes a project and cascades removal of every edge
// touching it.
func (g *Graph) RemoveProject(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.projects[id]; !exists {
		return fmt.Errorf("project %q not found", id)
	}

	delete(g.projects, id)
	delete(g.edges, id)
	for from, targets := range g.edges {
		delete(targets, id)
		if len(targets) == 0 {
			delete(g.edges, from)
		}
	}
	g.backend.RemoveNode(id)
	return nil
}

// UpdateProject applies mutate under the graph lock.
func (g *Graph) UpdateProject(id string, mutate func(*Project)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, exists := g.projects[id]
	if !exists {
		return fmt.Errorf("project %q not found", id)
	}
	mutate(p)
	p.UpdatedAt = time.Now()
	return nil
}

// GetProject returns a copy of the project metadata.
func (g *Graph) GetProject(id string) (*Project, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p, ok := g.projects[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// ListProjects returns all projects sorted by id.
func (g *Graph) ListProjects() []*Project {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Project, 0, len(g.projects))
	for _, p := range g.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddRelationship adds a directed edge. Both endpoints must already be
// registered, self-loops are rejected, and a DEPENDENCY edge that would
// close a cycle is rejected with a CycleError naming the cycle.
func (g *Graph) AddRelationship(rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("relationship is required")
	}
	if !ValidRelationType(rel.Type) {
		return fmt.Errorf("unknown relationship type %q", rel.Type)
	}
	if rel.From == rel.To {
		return fmt.Errorf("self-relationship not allowed for project %q", rel.From)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.backend.HasNode(rel.From) {
		return fmt.Errorf("source project %q not found", rel.From)
	}
	if !g.backend.HasNode(rel.To) {
		return fmt.Errorf("target project %q not found", rel.To)
	}

	if rel.Weight == 0 {
		rel.Weight = 1.0
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}

	if g.edges[rel.From] == nil {
		g.edges[rel.From] = make(map[string][]*Relationship)
	}
	g.edges[rel.From][rel.To] = append(g.edges[rel.From][rel.To], rel)
	g.backend.AddEdge(rel.From, rel.To)

	if rel.Type == RelationDependency {
		if cycle := g.findCycleLocked(RelationDependency); cycle != nil {
			g.removeRelationshipLocked(rel.From, rel.To, rel.Type)
			return &CycleError{Cycle: cycle}
		}
	}

	return nil
}

// RemoveRelationship removes edges between two projects. An empty type
// removes all edges for the pair.
func (g *Graph) RemoveRelationship(from, to string, relType RelationType) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.backend.HasEdge(from, to) {
		return fmt.Errorf("no relationship from %q to %q", from, to)
	}
	g.removeRelationshipLocked(from, to, relType)
	return nil
}

func (g *Graph) removeRelationshipLocked(from, to string, relType RelationType) {
	rels := g.edges[from][to]
	if relType != "" {
		kept := rels[:0]
		for _, r := range rels {
			if r.Type != relType {
				kept = append(kept, r)
			}
		}
		rels = kept
	} else {
		rels = nil
	}

	if len(rels) == 0 {
		delete(g.edges[from], to)
		if len(g.edges[from]) == 0 {
			delete(g.edges, from)
		}
		g.backend.RemoveEdge(from, to)
	} else {
		g.edges[from][to] = rels
	}
}

// Relationships returns every edge, sorted for determinism.
func (g *Graph) Relationships() []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.relationshipsLocked()
}

func (g *Graph) relationshipsLocked() []*Relationship {
	var out []*Relationship
	for _, targets := range g.edges {
		for _, rels := range targets {
			for _, r := range rels {
				cp := *r
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// RelationshipsFrom returns outgoing edges of a project.
func (g *Graph) RelationshipsFrom(id string) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Relationship
	for _, rels := range g.edges[id] {
		for _, r := range rels {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}

// RelationshipsTo returns incoming edges of a project.
func (g *Graph) RelationshipsTo(id string) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Relationship
	for _, from := range g.backend.Predecessors(id) {
		for _, r := range g.edges[from][id] {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// successorsLocked returns targets reachable over edges matching the
// type filter (empty filter = all types). The backend answers the
// connectivity question; edge metadata narrows it by type.
func (g *Graph) successorsLocked(id string, types ...RelationType) []string {
	var out []string
	for _, to := range g.backend.Successors(id) {
		if g.edgeMatchesLocked(id, to, types) {
			out = append(out, to)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) predecessorsLocked(id string, types ...RelationType) []string {
	var out []string
	for _, from := range g.backend.Predecessors(id) {
		if g.edgeMatchesLocked(from, id, types) {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) edgeMatchesLocked(from, to string, types []RelationType) bool {
	rels := g.edges[from][to]
	if len(rels) == 0 {
		return false
	}
	if len(types) == 0 {
		return true
	}
	for _, r := range rels {
		if containsType(types, r.Type) {
			return true
		}
	}
	return false
}

func containsType(types []RelationType, t RelationType) bool {
	for _, c := range types {
		if c == t {
			return true
		}
	}
	return false
}

// Stats summarizes the graph for status reporting.
type Stats struct {
	Projects      int                  `json:"projects"`
	Relationships int                  `json:"relationships"`
	EdgesByType   map[RelationType]int `json:"edges_by_type"`
}

// GetStats returns node and edge counts.
func (g *Graph) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		Projects:    len(g.projects),
		EdgesByType: make(map[RelationType]int),
	}
	for _, targets := range g.edges {
		for _, rels := range targets {
			s.Relationships += len(rels)
			for _, r := range rels {
				s.EdgesByType[r.Type]++
			}
		}
	}
	return s
}
