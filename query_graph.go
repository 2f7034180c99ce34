package spashta

import (
	"fmt"
	"strings"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Trace depth defaults and bound.
const (
	DefaultImpactDepth       = 2
	DefaultDependenciesDepth = 1
	MaxTraceDepth            = 100
)

// Relation is a node reached by tracing edges from a starting node.
type Relation struct {
	ID       string `json:"id"`
	Relation string `json:"relation"`
	Depth    int    `json:"depth"`
	NodeType string `json:"node_type"`
}

// Impact returns every node that reaches id through incoming edges within
// depth hops: what is affected if id changes.
func (q *QueryBuilder) Impact(id string, depth int) ([]Relation, error) {
	return q.trace(id, depth, true)
}

// Dependencies returns every node id reaches through outgoing edges within
// depth hops.
func (q *QueryBuilder) Dependencies(id string, depth int) ([]Relation, error) {
	return q.trace(id, depth, false)
}

// trace walks edges breadth-first. Each node is reported once, at its
// shortest distance, with the edge type that first reached it. Targets
// absent from the graph are reported with node type Unknown.
func (q *QueryBuilder) trace(id string, depth int, incoming bool) ([]Relation, error) {
	if depth < 0 {
		return nil, fmt.Errorf("spashta: trace %s: negative depth %d", id, depth)
	}
	if _, err := q.node(id); err != nil {
		return nil, err
	}
	depth = min(depth, MaxTraceDepth)

	seen := map[string]bool{id: true}
	out := []Relation{}
	frontier := []string{id}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, cur := range frontier {
			edges := q.index.Outgoing(cur)
			if incoming {
				edges = q.index.Incoming(cur)
			}
			for _, e := range edges {
				neighbor := e.To
				if incoming {
					neighbor = e.From
				}
				if seen[neighbor] {
					continue
				}
				seen[neighbor] = true
				out = append(out, Relation{ID: neighbor, Relation: e.Type, Depth: d, NodeType: q.typeOf(neighbor)})
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return out, nil
}

func (q *QueryBuilder) typeOf(id string) string {
	if n, ok := q.graph.Node(id); ok {
		return n.Type.String()
	}
	return graph.NodeUnknown.String()
}

// CallSite is one end of a calls edge.
type CallSite struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	NodeType string `json:"node_type"`
	CallLine int    `json:"call_line,omitempty"`
}

// CallSummary counts a node's call edges.
type CallSummary struct {
	OutgoingCount int `json:"outgoing_count"`
	IncomingCount int `json:"incoming_count"`
}

// CallGraph is the direct call neighborhood of one node.
type CallGraph struct {
	NodeID   string      `json:"node_id"`
	Calls    []CallSite  `json:"calls"`
	CalledBy []CallSite  `json:"called_by"`
	Summary  CallSummary `json:"summary"`
}

// CallGraph returns the callees and callers of id along calls edges only.
func (q *QueryBuilder) CallGraph(id string) (*CallGraph, error) {
	if _, err := q.node(id); err != nil {
		return nil, err
	}
	cg := &CallGraph{NodeID: id, Calls: []CallSite{}, CalledBy: []CallSite{}}
	for _, e := range q.index.Outgoing(id) {
		if e.Type == graph.EdgeCalls {
			cg.Calls = append(cg.Calls, q.callSite(e.To, e.CallLine))
		}
	}
	for _, e := range q.index.Incoming(id) {
		if e.Type == graph.EdgeCalls {
			cg.CalledBy = append(cg.CalledBy, q.callSite(e.From, e.CallLine))
		}
	}
	cg.Summary = CallSummary{OutgoingCount: len(cg.Calls), IncomingCount: len(cg.CalledBy)}
	return cg, nil
}

func (q *QueryBuilder) callSite(id string, line int) CallSite {
	n, ok := q.graph.Node(id)
	if !ok {
		name := id
		if i := strings.LastIndex(id, "::"); i >= 0 {
			name = id[i+2:]
		}
		return CallSite{ID: id, Name: name, NodeType: graph.NodeUnknown.String(), CallLine: line}
	}
	return CallSite{ID: id, Name: n.Name, NodeType: n.Type.String(), CallLine: line}
}

// Stats summarizes the graph.
type Stats struct {
	Nodes          int            `json:"nodes"`
	Edges          int            `json:"edges"`
	Ambiguities    int            `json:"ambiguities"`
	NodeTypes      map[string]int `json:"node_types"`
	EdgeTypes      map[string]int `json:"edge_types"`
	AmbiguityKinds map[string]int `json:"ambiguity_kinds"`
	Roles          map[string]int `json:"roles"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// Stats counts nodes, edges and ambiguities overall and by kind.
func (q *QueryBuilder) Stats() *Stats {
	s := &Stats{
		Nodes:          q.graph.Len(),
		Edges:          len(q.graph.Edges),
		Ambiguities:    len(q.graph.Ambiguities),
		NodeTypes:      make(map[string]int),
		EdgeTypes:      make(map[string]int),
		AmbiguityKinds: make(map[string]int),
		Roles:          roleCounts(q.graph),
		Meta:           q.graph.Meta,
	}
	for _, n := range q.graph.Nodes() {
		s.NodeTypes[n.Type.String()]++
	}
	for _, e := range q.graph.Edges {
		s.EdgeTypes[e.Type]++
	}
	for _, a := range q.graph.Ambiguities {
		s.AmbiguityKinds[a.Kind]++
	}
	return s
}
