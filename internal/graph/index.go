package graph

// Index is an adjacency view over a graph's edge list.
type Index struct {
	out map[string][]Edge
	in  map[string][]Edge
}

func newIndex(edges []Edge) *Index {
	idx := &Index{
		out: make(map[string][]Edge),
		in:  make(map[string][]Edge),
	}
	for _, e := range edges {
		if e.From == "" || e.To == "" {
			continue
		}
		idx.out[e.From] = append(idx.out[e.From], e)
		idx.in[e.To] = append(idx.in[e.To], e)
	}
	return idx
}

// Outgoing returns edges whose source is id, in edge-list order.
func (x *Index) Outgoing(id string) []Edge {
	return x.out[id]
}

// Incoming returns edges whose target is id, in edge-list order.
func (x *Index) Incoming(id string) []Edge {
	return x.in[id]
}

// Owners maps every node reachable from a File-kind node along containment
// edges to that file's id. File-kind nodes own themselves. Nodes missing
// from the result are orphans. When a node is reachable from several files
// the first file in graph order wins.
func Owners(g *Graph) map[string]string {
	owners := make(map[string]string)
	idx := g.Index()

	for _, n := range g.Nodes() {
		if !n.Type.IsFileKind() {
			continue
		}
		if _, seen := owners[n.ID]; seen {
			continue
		}
		owners[n.ID] = n.ID
		queue := []string{n.ID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, e := range idx.Outgoing(cur) {
				if !ContainmentEdges[e.Type] {
					continue
				}
				if _, seen := owners[e.To]; seen {
					continue
				}
				owners[e.To] = n.ID
				queue = append(queue, e.To)
			}
		}
	}
	return owners
}
