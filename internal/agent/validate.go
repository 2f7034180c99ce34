package agent

import (
	"errors"
	"fmt"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/guard"
)

// ErrInvalidGraph is returned when an agent graph fails validation.
var ErrInvalidGraph = errors.New("agent: invalid agent graph")

// Report is the result of checking an agent graph.
type Report struct {
	Status    string        `json:"status"`
	Errors    []string      `json:"errors"`
	Warnings  []string      `json:"warnings"`
	Structure *guard.Report `json:"structure"`
}

// Passed reports whether the agent graph may be used.
func (r *Report) Passed() bool {
	return r.Status == guard.StatusPass
}

// Err wraps ErrInvalidGraph when the report failed.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %d error(s), first: %s", ErrInvalidGraph, len(r.Errors), r.Errors[0])
}

// Validate checks what the agent wrote. Annotations must be well formed,
// and the structure must equal the enriched graph's: the agent may only
// add llm_enrichment and llm_resolution.
func Validate(enriched *graph.Graph, agent *Graph) *Report {
	r := &Report{Status: guard.StatusPass, Errors: []string{}, Warnings: []string{}}

	if !agent.hasNodes {
		r.Errors = append(r.Errors, "missing nodes array")
	}
	if !agent.hasEdges {
		r.Errors = append(r.Errors, "missing edges array")
	}
	for _, n := range agent.nodes {
		if n.Enrichment == nil {
			continue
		}
		if n.Enrichment.Intent == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("node %s: llm_enrichment has no intent", n.ID))
		}
		if n.Enrichment.Summary == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("node %s: llm_enrichment has no summary", n.ID))
		}
		if n.Enrichment.EnrichedAtHash == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("node %s: llm_enrichment has no enriched_at_hash", n.ID))
		}
	}
	for i, a := range agent.ambiguities {
		res := a.Resolution
		switch {
		case res == nil:
		case res.Status == "":
			r.Errors = append(r.Errors, fmt.Sprintf("ambiguity %s: llm_resolution has no status", ticketLabel(i, a)))
		case res.Status == ResolutionResolved && res.ProbableTarget == "":
			r.Errors = append(r.Errors, fmt.Sprintf("ambiguity %s: resolved without probable_target", ticketLabel(i, a)))
		}
	}

	r.Structure = guard.Verify(enriched, agent.Structure)
	for _, v := range r.Structure.Violations {
		r.Errors = append(r.Errors, v.Type+": "+v.Detail)
	}
	if len(r.Errors) > 0 {
		r.Status = guard.StatusFail
	}
	return r
}
