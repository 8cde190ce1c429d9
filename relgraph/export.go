package relgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NodeLinkDocument is the full serialized form of the graph: every
// project node with metadata plus every typed edge.
type NodeLinkDocument struct {
	Version int             `json:"version"`
	Nodes   []*Project      `json:"nodes"`
	Links   []*Relationship `json:"links"`
}

// Export serializes the graph as a node-link document.
func (g *Graph) Export() *NodeLinkDocument {
	return &NodeLinkDocument{
		Version: 1,
		Nodes:   g.ListProjects(),
		Links:   g.Relationships(),
	}
}

// ExportJSON returns the node-link document as indented JSON.
func (g *Graph) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(g.Export(), "", "  ")
}

// ImportJSON rebuilds graph content from a node-link document. Nodes
// are added before links so edge validation holds; a dependency cycle
// in the document is rejected the same way live edits are.
func (g *Graph) ImportJSON(data []byte) error {
	var doc NodeLinkDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse node-link document: %w", err)
	}

	for _, node := range doc.Nodes {
		if err := g.AddProject(node); err != nil {
			return fmt.Errorf("failed to import node %q: %w", node.ID, err)
		}
	}
	for _, link := range doc.Links {
		if err := g.AddRelationship(link); err != nil {
			return fmt.Errorf("failed to import edge %s->%s: %w", link.From, link.To, err)
		}
	}
	return nil
}

// ExportDOT renders the graph in Graphviz DOT form for operators.
// Edges are labeled with their type and weight.
func (g *Graph) ExportDOT() string {
	var b strings.Builder
	b.WriteString("digraph workspace {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for _, p := range g.ListProjects() {
		label := p.ID
		if p.Name != "" && p.Name != p.ID {
			label = fmt.Sprintf("%s\\n%s", p.ID, p.Name)
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", p.ID, label)
	}

	rels := g.Relationships()
	sort.SliceStable(rels, func(i, j int) bool {
		if rels[i].From != rels[j].From {
			return rels[i].From < rels[j].From
		}
		return rels[i].To < rels[j].To
	})
	for _, r := range rels {
		style := ""
		if r.Type == RelationSemanticSim {
			style = ", style=dashed"
		}
		fmt.Fprintf(&b, "  %q -> %q [label=\"%s (%.2f)\"%s];\n", r.From, r.To, r.Type, r.Weight, style)
	}

	b.WriteString("}\n")
	return b.String()
}
