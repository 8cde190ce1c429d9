package relgraph

// DirectedBackend is the minimal directed-graph capability the
// relationship graph needs: connectivity lives here, typed edge
// metadata stays in the Graph. Two implementations exist: a hand-rolled
// adjacency-map backend and a gonum-backed one, chosen at construction.
type DirectedBackend interface {
	AddNode(id string)
	RemoveNode(id string)
	HasNode(id string) bool
	Nodes() []string

	AddEdge(from, to string)
	RemoveEdge(from, to string)
	HasEdge(from, to string) bool

	Successors(id string) []string
	Predecessors(id string) []string
}

// adjacencyBackend is the dependency-free fallback backend.
type adjacencyBackend struct {
	forward map[string]map[string]bool
	reverse map[string]map[string]bool
}

// NewAdjacencyBackend creates the map-based backend.
func NewAdjacencyBackend() DirectedBackend {
	return &adjacencyBackend{
		forward: make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

func (b *adjacencyBackend) AddNode(id string) {
	if _, ok := b.forward[id]; !ok {
		b.forward[id] = make(map[string]bool)
	}
	if _, ok := b.reverse[id]; !ok {
		b.reverse[id] = make(map[string]bool)
	}
}

func (b *adjacencyBackend) RemoveNode(id string) {
	for succ := range b.forward[id] {
		delete(b.reverse[succ], id)
	}
	for pred := range b.reverse[id] {
		delete(b.forward[pred], id)
	}
	delete(b.forward, id)
	delete(b.reverse, id)
}

func (b *adjacencyBackend) HasNode(id string) bool {
	_, ok := b.forward[id]
	return ok
}

func (b *adjacencyBackend) Nodes() []string {
	nodes := make([]string, 0, len(b.forward))
	for id := range b.forward {
		nodes = append(nodes, id)
	}
	return nodes
}

func (b *adjacencyBackend) AddEdge(from, to string) {
	b.AddNode(from)
	b.AddNode(to)
	b.forward[from][to] = true
	b.reverse[to][from] = true
}

func (b *adjacencyBackend) RemoveEdge(from, to string) {
	if succs, ok := b.forward[from]; ok {
		delete(succs, to)
	}
	if preds, ok := b.reverse[to]; ok {
		delete(preds, from)
	}
}

func (b *adjacencyBackend) HasEdge(from, to string) bool {
	return b.forward[from][to]
}

func (b *adjacencyBackend) Successors(id string) []string {
	out := make([]string, 0, len(b.forward[id]))
	for succ := range b.forward[id] {
		out = append(out, succ)
	}
	return out
}

func (b *adjacencyBackend) Predecessors(id string) []string {
	out := make([]string, 0, len(b.reverse[id]))
	for pred := range b.reverse[id] {
		out = append(out, pred)
	}
	return out
}
