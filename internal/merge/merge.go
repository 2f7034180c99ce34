// Package merge unifies validated builder fragments into one graph with
// globally canonical node identities. It never re-parses source.
package merge

import (
	"sort"
	"strings"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Source labels the merged graph's metadata.
const Source = "spashta merge"

// Stats summarizes one merge.
type Stats struct {
	Fragments   int      `json:"fragment_count"`
	Languages   []string `json:"fragments_merged"`
	InputNodes  int      `json:"input_node_count"`
	MergedNodes int      `json:"merged_node_count"`
	Collisions  int      `json:"collisions"`
	InputEdges  int      `json:"input_edge_count"`
	MergedEdges int      `json:"merged_edge_count"`
	Ambiguities int      `json:"ambiguity_count"`
}

// CanonicalID returns the global identity of a fragment node.
//
//	File-kind with a path   Type:path
//	scoped raw id (::)      raw id
//	other node with a path  Type:path::name
//	otherwise               Type:name
func CanonicalID(n *graph.Node) string {
	typ := n.RawType()
	if typ == "" {
		typ = graph.NodeUnknown.String()
	}
	name := n.Name
	if name == "" {
		name = "Unnamed"
	}
	switch {
	case n.FilePath != "" && n.Type.IsFileKind():
		return typ + ":" + n.FilePath
	case strings.Contains(n.ID, "::"):
		return n.ID
	case n.FilePath != "":
		return typ + ":" + n.FilePath + "::" + name
	}
	return typ + ":" + name
}

// Merge folds fragments, taken in lexical language order, into one graph.
// A later node with an already seen canonical id replaces the earlier one
// in place. Edge endpoints are rewritten through the raw id map, then the
// bare name map; references neither map knows pass through unchanged.
// Duplicate (type, from, to) edges keep their first occurrence.
func Merge(fragments []*graph.Fragment) (*graph.Graph, Stats) {
	ordered := make([]*graph.Fragment, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Language < ordered[j].Language
	})

	g := graph.New()
	st := Stats{Fragments: len(ordered), Languages: make([]string, 0, len(ordered))}
	byRawID := make(map[string]string)
	byName := make(map[string]string)

	for _, f := range ordered {
		st.Languages = append(st.Languages, f.Language)
		st.InputNodes += len(f.Nodes)
		g.Ambiguities = append(g.Ambiguities, f.Ambiguities...)
		for i := range f.Nodes {
			n := f.Nodes[i].Clone()
			canonical := CanonicalID(&n)
			raw := n.ID
			n.ID = canonical
			if g.Put(n) {
				st.Collisions++
			}
			if n.Name != "" {
				byName[n.Name] = canonical
			}
			if raw != "" {
				byRawID[raw] = canonical
			}
		}
	}

	rewrite := func(ref string) string {
		if id, ok := byRawID[ref]; ok {
			return id
		}
		if id, ok := byName[ref]; ok {
			return id
		}
		return ref
	}

	seen := make(map[graph.EdgeKey]bool)
	for _, f := range ordered {
		st.InputEdges += len(f.Edges)
		for _, e := range f.Edges {
			e.From = rewrite(e.From)
			e.To = rewrite(e.To)
			if seen[e.Key()] {
				continue
			}
			seen[e.Key()] = true
			g.AddEdge(e)
		}
	}

	st.MergedNodes = g.Len()
	st.MergedEdges = len(g.Edges)
	st.Ambiguities = len(g.Ambiguities)
	g.Meta = map[string]any{
		"source":           Source,
		"fragments_merged": st.Languages,
	}
	return g, st
}
