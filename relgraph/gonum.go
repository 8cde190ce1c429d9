package relgraph

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// gonumBackend adapts gonum's simple.DirectedGraph to DirectedBackend.
// Gonum nodes are int64, so the backend keeps a bidirectional id map.
type gonumBackend struct {
	g       *simple.DirectedGraph
	ids     map[string]int64
	reverse map[int64]string
}

// NewGonumBackend creates the gonum-backed directed graph.
func NewGonumBackend() DirectedBackend {
	return &gonumBackend{
		g:       simple.NewDirectedGraph(),
		ids:     make(map[string]int64),
		reverse: make(map[int64]string),
	}
}

func (b *gonumBackend) AddNode(id string) {
	if _, ok := b.ids[id]; ok {
		return
	}
	n := b.g.NewNode()
	b.g.AddNode(n)
	b.ids[id] = n.ID()
	b.reverse[n.ID()] = id
}

func (b *gonumBackend) RemoveNode(id string) {
	gid, ok := b.ids[id]
	if !ok {
		return
	}
	b.g.RemoveNode(gid)
	delete(b.ids, id)
	delete(b.reverse, gid)
}

func (b *gonumBackend) HasNode(id string) bool {
	_, ok := b.ids[id]
	return ok
}

func (b *gonumBackend) Nodes() []string {
	nodes := make([]string, 0, len(b.ids))
	for id := range b.ids {
		nodes = append(nodes, id)
	}
	return nodes
}

func (b *gonumBackend) AddEdge(from, to string) {
	if from == to {
		return // simple.DirectedGraph panics on self-loops
	}
	b.AddNode(from)
	b.AddNode(to)
	fid, tid := b.ids[from], b.ids[to]
	b.g.SetEdge(b.g.NewEdge(simple.Node(fid), simple.Node(tid)))
}

func (b *gonumBackend) RemoveEdge(from, to string) {
	fid, ok := b.ids[from]
	if !ok {
		return
	}
	tid, ok := b.ids[to]
	if !ok {
		return
	}
	b.g.RemoveEdge(fid, tid)
}

func (b *gonumBackend) HasEdge(from, to string) bool {
	fid, ok := b.ids[from]
	if !ok {
		return false
	}
	tid, ok := b.ids[to]
	if !ok {
		return false
	}
	return b.g.HasEdgeFromTo(fid, tid)
}

func (b *gonumBackend) Successors(id string) []string {
	gid, ok := b.ids[id]
	if !ok {
		return nil
	}
	return b.collect(b.g.From(gid))
}

func (b *gonumBackend) Predecessors(id string) []string {
	gid, ok := b.ids[id]
	if !ok {
		return nil
	}
	return b.collect(b.g.To(gid))
}

func (b *gonumBackend) collect(it graph.Nodes) []string {
	var out []string
	for it.Next() {
		if name, ok := b.reverse[it.Node().ID()]; ok {
			out = append(out, name)
		}
	}
	return out
}
