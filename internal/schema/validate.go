package schema

import (
	"fmt"
	"strings"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Report statuses.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Issue is one validation finding.
type Issue struct {
	Issue    string `json:"issue"`
	ID       string `json:"id,omitempty"`
	Value    string `json:"value,omitempty"`
	EdgeType string `json:"edge_type,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Report is the machine-readable result of validating one fragment.
type Report struct {
	Fragment       string  `json:"fragment"`
	Status         string  `json:"status"`
	NodeCount      int     `json:"node_count"`
	EdgeCount      int     `json:"edge_count"`
	AmbiguityCount int     `json:"ambiguity_count"`
	SchemaErrors   []Issue `json:"schema_errors"`
	SchemaWarnings []Issue `json:"schema_warnings"`
}

// Passed reports whether the fragment may proceed to merge.
func (r *Report) Passed() bool {
	return r.Status == StatusPass
}

// Err summarizes a failed report as an error, or returns nil.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	first := r.SchemaErrors[0]
	return fmt.Errorf("fragment %s: %d schema error(s), first: %s %s",
		r.Fragment, len(r.SchemaErrors), first.Issue, first.Detail)
}

// Validate checks a builder fragment against s.
func Validate(s *Schema, name string, f *graph.Fragment) *Report {
	r := &Report{
		Fragment:       name,
		Status:         StatusPass,
		NodeCount:      len(f.Nodes),
		EdgeCount:      len(f.Edges),
		AmbiguityCount: len(f.Ambiguities),
		SchemaErrors:   []Issue{},
		SchemaWarnings: []Issue{},
	}

	types := make(map[string]graph.NodeType, len(f.Nodes))
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if n.ID == "" {
			r.fail(Issue{Issue: "Missing Node ID", Value: n.Name})
			continue
		}
		if n.RawType() == "" {
			r.fail(Issue{Issue: "Missing Node Type", ID: n.ID})
			continue
		}
		types[n.ID] = n.Type
		if !s.HasNodeType(n.Type) {
			r.fail(Issue{
				Issue:  "Invalid Node Type",
				ID:     n.ID,
				Value:  n.RawType(),
				Detail: "Type not defined in core schema",
			})
			continue
		}
		if n.Type.IsFileKind() && n.Hash == "" {
			r.fail(Issue{
				Issue:  "Missing File Hash",
				ID:     n.ID,
				Detail: fmt.Sprintf("%s nodes must carry a content hash", n.Type),
			})
		}
		if n.Confidence != "" && !n.Confidence.ValidForNode() {
			r.warn(Issue{Issue: "Non-Standard Node Confidence", ID: n.ID, Value: string(n.Confidence)})
		}
	}

	for _, e := range f.Edges {
		if e.Type == "" || e.From == "" || e.To == "" {
			r.fail(Issue{Issue: "Malformed Edge", EdgeType: e.Type, From: e.From, To: e.To})
			continue
		}
		if !s.HasEdgeType(e.Type) {
			r.fail(Issue{
				Issue:  "Invalid Edge Type",
				Value:  e.Type,
				From:   e.From,
				To:     e.To,
				Detail: "Edge type not defined in core schema",
			})
			continue
		}
		srcType, ok := types[e.From]
		if !ok {
			r.fail(Issue{Issue: "Orphaned Edge Source", EdgeType: e.Type, From: e.From, To: e.To,
				Detail: fmt.Sprintf("Node %s not found in fragment nodes", e.From)})
			continue
		}
		dstType, ok := types[e.To]
		if !ok {
			r.fail(Issue{Issue: "Orphaned Edge Target", EdgeType: e.Type, From: e.From, To: e.To,
				Detail: fmt.Sprintf("Node %s not found in fragment nodes", e.To)})
			continue
		}
		if !s.AllowsSource(e.Type, srcType) {
			r.fail(Issue{Issue: "Invalid Edge Relationship (Source)", EdgeType: e.Type, From: e.From, To: e.To,
				Detail: fmt.Sprintf("Edge '%s' cannot originate from '%s'", e.Type, srcType)})
		}
		if !s.AllowsTarget(e.Type, dstType) {
			r.fail(Issue{Issue: "Invalid Edge Relationship (Target)", EdgeType: e.Type, From: e.From, To: e.To,
				Detail: fmt.Sprintf("Edge '%s' cannot point to '%s'", e.Type, dstType)})
		}
	}

	for _, a := range f.Ambiguities {
		var missing []string
		if a.ID == "" {
			missing = append(missing, "id")
		}
		if a.Kind == "" {
			missing = append(missing, "kind")
		}
		if a.Reason == "" {
			missing = append(missing, "reason")
		}
		if a.Confidence == "" {
			missing = append(missing, "confidence")
		}
		if len(missing) > 0 {
			r.fail(Issue{
				Issue:  "Malformed Ambiguity Ticket",
				ID:     a.ID,
				Detail: "missing " + strings.Join(missing, ", "),
			})
			continue
		}
		if !a.Confidence.ValidForAmbiguity() {
			r.warn(Issue{Issue: "Non-Standard Ambiguity Confidence", ID: a.ID, Value: string(a.Confidence)})
		}
	}
	return r
}

func (r *Report) fail(i Issue) {
	r.SchemaErrors = append(r.SchemaErrors, i)
	r.Status = StatusFail
}

func (r *Report) warn(i Issue) {
	r.SchemaWarnings = append(r.SchemaWarnings, i)
}
