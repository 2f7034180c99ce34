// Package agent keeps the books for agent-written semantic enrichment. An
// external agent copies the enriched graph and adds llm_enrichment to nodes
// and llm_resolution to ambiguity tickets. This package never calls a
// model: it lists the files that still need the agent, checks what the
// agent wrote, and counts its progress.
package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Pending reasons.
const (
	ReasonFullMode    = "full_mode"
	ReasonNewFile     = "new_file"
	ReasonNotEnriched = "not_enriched"
	ReasonHashChanged = "hash_changed"
	ReasonUnchanged   = "unchanged"
)

// ResolutionResolved is the llm_resolution status of a settled ticket.
const ResolutionResolved = "resolved"

// Enrichment is what the agent attaches to a node.
type Enrichment struct {
	Intent          string   `json:"intent,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	ComplexityScore int      `json:"complexity_score,omitempty"`
	DomainTags      []string `json:"domain_tags,omitempty"`
	PureLogic       *bool    `json:"pure_logic,omitempty"`
	SideEffects     []string `json:"side_effects,omitempty"`
	EnrichedAt      string   `json:"enriched_at,omitempty"`
	EnrichedAtHash  string   `json:"enriched_at_hash,omitempty"`
}

// Resolution is the agent's verdict on one ambiguity ticket.
type Resolution struct {
	Status         string `json:"status"`
	ProbableTarget string `json:"probable_target,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
}

type agentNode struct {
	ID         string      `json:"id"`
	Enrichment *Enrichment `json:"llm_enrichment"`
}

type agentAmbiguity struct {
	ID         string      `json:"id"`
	Resolution *Resolution `json:"llm_resolution"`
}

type document struct {
	Nodes       []agentNode      `json:"nodes"`
	Edges       *json.RawMessage `json:"edges"`
	Ambiguities []agentAmbiguity `json:"ambiguities"`
}

// Graph is an agent-written graph: the structural graph plus the agent's
// annotations, in document order.
type Graph struct {
	Structure *graph.Graph

	nodes       []agentNode
	byID        map[string]*Enrichment
	ambiguities []agentAmbiguity
	hasNodes    bool
	hasEdges    bool
}

// ReadGraph loads the agent graph at path. A missing file yields
// graph.ErrNoArtifact.
func ReadGraph(path string) (*Graph, error) {
	var doc document
	if err := graph.ReadJSON(path, &doc); err != nil {
		return nil, err
	}
	structure, err := graph.ReadGraph(path)
	if err != nil {
		return nil, err
	}
	g := &Graph{
		Structure:   structure,
		nodes:       doc.Nodes,
		byID:        make(map[string]*Enrichment, len(doc.Nodes)),
		ambiguities: doc.Ambiguities,
		hasNodes:    doc.Nodes != nil,
		hasEdges:    doc.Edges != nil,
	}
	for _, n := range doc.Nodes {
		g.byID[n.ID] = n.Enrichment
	}
	return g, nil
}

// Enrichment returns the agent's annotation of node id.
func (g *Graph) Enrichment(id string) (*Enrichment, bool) {
	if g == nil {
		return nil, false
	}
	e, ok := g.byID[id]
	return e, ok
}

// PendingFile is one file-level node and why it does or does not need the
// agent.
type PendingFile struct {
	ID          string `json:"id"`
	FilePath    string `json:"file_path"`
	CurrentHash string `json:"current_hash"`
	Reason      string `json:"reason"`
}

// PendingSummary counts a PendingReport.
type PendingSummary struct {
	TotalFiles int `json:"total_files"`
	Pending    int `json:"pending_enrichment"`
	Skipped    int `json:"skipped"`
}

// PendingReport splits the enriched graph's files into those the agent
// must (re)visit and those it may skip.
type PendingReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Mode        string         `json:"mode"`
	Summary     PendingSummary `json:"summary"`
	Pending     []PendingFile  `json:"files_to_enrich"`
	Skipped     []PendingFile  `json:"files_skipped"`
}

// Modes of Pending.
const (
	ModeIncremental = "incremental"
	ModeFull        = "full"
)

// Pending compares every file-level node of enriched with the agent graph,
// which may be nil. A file is skipped only when the agent enriched it at
// its current hash. In full mode every file is pending.
func Pending(enriched *graph.Graph, agent *Graph, full bool, now time.Time) *PendingReport {
	r := &PendingReport{
		GeneratedAt: now.UTC(),
		Mode:        ModeIncremental,
		Pending:     []PendingFile{},
		Skipped:     []PendingFile{},
	}
	if full {
		r.Mode = ModeFull
	}
	for _, n := range enriched.Nodes() {
		if !n.Type.IsFileKind() {
			continue
		}
		f := PendingFile{ID: n.ID, FilePath: n.FilePath, CurrentHash: n.Hash}
		if f.FilePath == "" {
			f.FilePath = n.Name
		}
		enr, found := agent.Enrichment(n.ID)
		switch {
		case full:
			f.Reason = ReasonFullMode
		case !found:
			f.Reason = ReasonNewFile
		case enr == nil:
			f.Reason = ReasonNotEnriched
		case enr.EnrichedAtHash != n.Hash:
			f.Reason = ReasonHashChanged
		default:
			f.Reason = ReasonUnchanged
		}
		if f.Reason == ReasonUnchanged {
			r.Skipped = append(r.Skipped, f)
		} else {
			r.Pending = append(r.Pending, f)
		}
	}
	r.Summary = PendingSummary{
		TotalFiles: len(r.Pending) + len(r.Skipped),
		Pending:    len(r.Pending),
		Skipped:    len(r.Skipped),
	}
	return r
}

// NodeStats counts enriched nodes.
type NodeStats struct {
	Total           int     `json:"total"`
	Enriched        int     `json:"enriched"`
	Pending         int     `json:"pending"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// AmbiguityStats counts agent verdicts on tickets.
type AmbiguityStats struct {
	Total        int `json:"total"`
	Resolved     int `json:"resolved"`
	Unresolved   int `json:"unresolved"`
	NotProcessed int `json:"not_processed"`
}

// Stats is the agent's progress over the enriched graph.
type Stats struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Nodes       NodeStats      `json:"nodes"`
	Ambiguities AmbiguityStats `json:"ambiguities"`
}

// Progress counts the agent's annotations against the enriched graph's
// totals. agent may be nil.
func Progress(enriched *graph.Graph, agent *Graph, now time.Time) *Stats {
	s := &Stats{GeneratedAt: now.UTC()}
	s.Nodes.Total = enriched.Len()
	s.Ambiguities.Total = len(enriched.Ambiguities)
	if agent != nil {
		for _, n := range agent.nodes {
			if n.Enrichment != nil {
				s.Nodes.Enriched++
			}
		}
		for _, a := range agent.ambiguities {
			switch {
			case a.Resolution == nil:
			case a.Resolution.Status == ResolutionResolved:
				s.Ambiguities.Resolved++
			default:
				s.Ambiguities.Unresolved++
			}
		}
	}
	s.Nodes.Pending = s.Nodes.Total - s.Nodes.Enriched
	if s.Nodes.Total > 0 {
		s.Nodes.CoveragePercent = math.Round(float64(s.Nodes.Enriched)/float64(s.Nodes.Total)*1000) / 10
	}
	s.Ambiguities.NotProcessed = s.Ambiguities.Total - s.Ambiguities.Resolved - s.Ambiguities.Unresolved
	return s
}

// ticketLabel names ambiguity i for findings.
func ticketLabel(i int, a agentAmbiguity) string {
	if a.ID != "" {
		return a.ID
	}
	return fmt.Sprintf("#%d", i)
}
