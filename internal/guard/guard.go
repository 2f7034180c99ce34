// Package guard proves that enrichment left the graph's structure intact:
// identical node ids and types, identical edge keys and every ambiguity
// ticket preserved.
package guard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// ErrEquivalenceFailed is returned when the enriched graph diverges.
var ErrEquivalenceFailed = errors.New("guard: structural equivalence violated")

// Report statuses.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Violation kinds.
const (
	NodeCountMismatch = "node_count_mismatch"
	NodeRemoved       = "node_removed"
	NodeTypeChanged   = "node_type_changed"
	NodeAdded         = "node_added"
	EdgeRemoved       = "edge_removed"
	EdgeAdded         = "edge_added"
	AmbiguityMismatch = "ambiguity_mismatch"
)

// Violation is one divergence between the merged and enriched graphs.
type Violation struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Report is the equivalence phase artifact.
type Report struct {
	Status     string      `json:"status"`
	Violations []Violation `json:"violations"`
}

// Passed reports whether the enriched graph may be published.
func (r *Report) Passed() bool {
	return r.Status == StatusPass
}

// Err wraps ErrEquivalenceFailed when the report failed.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %d violation(s), first: %s", ErrEquivalenceFailed, len(r.Violations), r.Violations[0].Detail)
}

// Verify compares merged (the structural authority) with enriched.
func Verify(merged, enriched *graph.Graph) *Report {
	r := &Report{Status: StatusPass, Violations: []Violation{}}
	add := func(typ, format string, args ...any) {
		r.Violations = append(r.Violations, Violation{Type: typ, Detail: fmt.Sprintf(format, args...)})
	}

	if merged.Len() != enriched.Len() {
		add(NodeCountMismatch, "merged nodes: %d, enriched nodes: %d", merged.Len(), enriched.Len())
	}
	for _, n := range merged.Nodes() {
		e, ok := enriched.Node(n.ID)
		if !ok {
			add(NodeRemoved, "node %s present in merged graph but missing in enriched graph", n.ID)
			continue
		}
		if e.RawType() != n.RawType() {
			add(NodeTypeChanged, "node %s type changed from %q to %q", n.ID, n.RawType(), e.RawType())
		}
	}
	for _, n := range enriched.Nodes() {
		if !merged.Has(n.ID) {
			add(NodeAdded, "node %s added by enrichment", n.ID)
		}
	}

	before := edgeKeys(merged.Edges)
	after := edgeKeys(enriched.Edges)
	for _, k := range sortedMissing(before, after) {
		add(EdgeRemoved, "edge %s missing in enriched graph", k)
	}
	for _, k := range sortedMissing(after, before) {
		add(EdgeAdded, "edge %s added by enrichment", k)
	}

	if !sameTickets(merged.Ambiguities, enriched.Ambiguities) {
		add(AmbiguityMismatch, "merged ambiguities: %d, enriched ambiguities: %d; enrichment must preserve every ticket",
			len(merged.Ambiguities), len(enriched.Ambiguities))
	}

	if len(r.Violations) > 0 {
		r.Status = StatusFail
	}
	return r
}

func edgeKeys(edges []graph.Edge) map[string]bool {
	keys := make(map[string]bool, len(edges))
	for _, e := range edges {
		keys[e.Key().String()] = true
	}
	return keys
}

// sortedMissing returns the keys of a absent from b, sorted.
func sortedMissing(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sameTickets(a, b []graph.Ambiguity) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t.ID]++
	}
	for _, t := range b {
		counts[t.ID]--
		if counts[t.ID] < 0 {
			return false
		}
	}
	return true
}
