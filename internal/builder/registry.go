package builder

import "github.com/mpcoder1111/Spashta-CKG/internal/graph"

// Registry is the append-only table of proven definitions for one build
// run. Every pass and every unit of a builder shares the same Registry; the
// first registration of an id wins.
type Registry struct {
	ids      []string
	nodes    map[string]*graph.Node
	children map[string][]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:    make(map[string]*graph.Node),
		children: make(map[string][]string),
	}
}

// Register records n as a direct child of parent. parent is empty for
// file-level nodes. Returns false when n.ID is already registered.
func (r *Registry) Register(parent string, n graph.Node) bool {
	if _, ok := r.nodes[n.ID]; ok {
		return false
	}
	stored := n
	r.nodes[n.ID] = &stored
	r.ids = append(r.ids, n.ID)
	if parent != "" {
		r.children[parent] = append(r.children[parent], n.ID)
	}
	return true
}

// Lookup returns the registered node for id.
func (r *Registry) Lookup(id string) (*graph.Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.nodes[id]
	return ok
}

// Type returns the node type of id, or NodeUnknown when unregistered.
func (r *Registry) Type(id string) graph.NodeType {
	if n, ok := r.nodes[id]; ok {
		return n.Type
	}
	return graph.NodeUnknown
}

// Children returns the ids registered directly under scope, in
// registration order.
func (r *Registry) Children(scope string) []string {
	return r.children[scope]
}

// IDs returns every registered id in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	return len(r.ids)
}
