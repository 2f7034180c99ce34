// Package graph defines the node, edge and ambiguity vocabulary shared by
// every phase, the per-builder Fragment, and the id-keyed Graph arena that
// merge, diff, enrichment and queries operate on.
package graph

import (
	"encoding/json"
	"fmt"
)

// LogEntry records a unit-scoped degradation inside a builder run.
type LogEntry struct {
	Type    string `json:"type"`
	File    string `json:"file,omitempty"`
	Message string `json:"message"`
}

// Fragment is one builder's output for one language.
type Fragment struct {
	Language    string         `json:"language,omitempty"`
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	Ambiguities []Ambiguity    `json:"ambiguities"`
	Logs        []LogEntry     `json:"logs"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// NewFragment returns an empty fragment for language.
func NewFragment(language string) *Fragment {
	return &Fragment{
		Language:    language,
		Nodes:       []Node{},
		Edges:       []Edge{},
		Ambiguities: []Ambiguity{},
		Logs:        []LogEntry{},
	}
}

// normalize replaces nil slices so the JSON form always carries arrays.
func (f *Fragment) normalize() {
	if f.Nodes == nil {
		f.Nodes = []Node{}
	}
	if f.Edges == nil {
		f.Edges = []Edge{}
	}
	if f.Ambiguities == nil {
		f.Ambiguities = []Ambiguity{}
	}
	if f.Logs == nil {
		f.Logs = []LogEntry{}
	}
}

// Graph is an arena of nodes keyed by id with edges stored as id pairs.
// Node insertion order is preserved for deterministic output.
type Graph struct {
	order []string
	nodes map[string]*Node

	Edges       []Edge
	Ambiguities []Ambiguity
	Meta        map[string]any

	index *Index
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:       make(map[string]*Node),
		Edges:       []Edge{},
		Ambiguities: []Ambiguity{},
	}
}

// Put inserts n, or replaces the node with the same id in place. Returns
// true when an existing node was replaced.
func (g *Graph) Put(n Node) bool {
	g.index = nil
	if existing, ok := g.nodes[n.ID]; ok {
		*existing = n
		return true
	}
	stored := n
	g.nodes[n.ID] = &stored
	g.order = append(g.order, n.ID)
	return false
}

// Node returns the node with id, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id is a node of g.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.order)
}

// IDs returns node ids in insertion order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Nodes returns the nodes in insertion order. The pointers alias the arena.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// AddEdge appends e to the edge list.
func (g *Graph) AddEdge(e Edge) {
	g.index = nil
	g.Edges = append(g.Edges, e)
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, id := range g.order {
		c.Put(g.nodes[id].Clone())
	}
	c.Edges = make([]Edge, len(g.Edges))
	for i, e := range g.Edges {
		c.Edges[i] = e
		if e.Meta != nil {
			c.Edges[i].Meta = make(map[string]any, len(e.Meta))
			for k, v := range e.Meta {
				c.Edges[i].Meta[k] = v
			}
		}
	}
	c.Ambiguities = append([]Ambiguity{}, g.Ambiguities...)
	if g.Meta != nil {
		c.Meta = make(map[string]any, len(g.Meta))
		for k, v := range g.Meta {
			c.Meta[k] = v
		}
	}
	return c
}

// Index returns the adjacency index for g, building it on first use.
func (g *Graph) Index() *Index {
	if g.index == nil {
		g.index = newIndex(g.Edges)
	}
	return g.index
}

type document struct {
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	Ambiguities []Ambiguity    `json:"ambiguities"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := document{
		Nodes:       make([]Node, 0, len(g.order)),
		Edges:       g.Edges,
		Ambiguities: g.Ambiguities,
		Meta:        g.Meta,
	}
	for _, id := range g.order {
		doc.Nodes = append(doc.Nodes, *g.nodes[id])
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	if doc.Ambiguities == nil {
		doc.Ambiguities = []Ambiguity{}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON loads a graph document. Duplicate node ids are an error:
// a persisted graph is expected to be post-merge.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*g = *New()
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return fmt.Errorf("graph: node without id")
		}
		if g.Put(n) {
			return fmt.Errorf("graph: duplicate node id %q", n.ID)
		}
	}
	if doc.Edges != nil {
		g.Edges = doc.Edges
	}
	if doc.Ambiguities != nil {
		g.Ambiguities = doc.Ambiguities
	}
	g.Meta = doc.Meta
	return nil
}
