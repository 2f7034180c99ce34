// Package enrich overlays framework semantics on a merged graph. Adapters
// attach semantic roles to existing nodes; nodes, edges and ambiguities are
// never added, removed or rewritten.
package enrich

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/diff"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// Enrichment modes.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Report summarizes one enrichment pass.
type Report struct {
	Mode         string   `json:"mode"`
	Frameworks   []string `json:"frameworks"`
	Preserved    int      `json:"preserved"`
	Enriched     int      `json:"enriched"`
	RolesApplied int      `json:"roles_applied"`
}

// Engine applies an ordered list of adapters.
type Engine struct {
	adapters []*Adapter
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New returns an Engine for adapters, applied in order.
func New(adapters []*Adapter, opts ...Option) *Engine {
	e := &Engine{adapters: adapters, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns the enriched copy of merged. When both previous and d are
// given, nodes d marks UNCHANGED are carried verbatim from previous and only
// the rest are evaluated; otherwise every node is evaluated. The output
// keeps merged's node order, edges and ambiguities.
func (e *Engine) Enrich(merged, previous *graph.Graph, d *diff.Report) (*graph.Graph, *Report) {
	rep := &Report{Mode: ModeFull, Frameworks: make([]string, 0, len(e.adapters))}
	for _, a := range e.adapters {
		rep.Frameworks = append(rep.Frameworks, a.Framework)
	}
	incremental := previous != nil && d != nil
	if incremental {
		rep.Mode = ModeIncremental
	}

	out := graph.New()
	var pending []string
	for _, n := range merged.Nodes() {
		if incremental && d.Of(n.ID) == diff.Unchanged {
			if old, ok := previous.Node(n.ID); ok {
				out.Put(old.Clone())
				rep.Preserved++
				continue
			}
		}
		out.Put(n.Clone())
		pending = append(pending, n.ID)
	}
	rep.Enriched = len(pending)
	out.Edges = cloneEdges(merged.Edges)
	out.Ambiguities = append([]graph.Ambiguity{}, merged.Ambiguities...)
	out.Meta = merged.Meta

	v := newView(out)
	for _, a := range e.adapters {
		for _, rule := range a.Mappings {
			t, ok := graph.ParseNodeType(rule.CoreNode)
			if !ok {
				continue
			}
			for _, id := range pending {
				n, _ := out.Node(id)
				if n.Type != t || !v.matches(n, rule.DetectionRules) {
					continue
				}
				if n.AddRole(rule.SemanticRole) {
					rep.RolesApplied++
				}
			}
		}
	}

	e.logger.Info("enrichment complete",
		zap.String("mode", rep.Mode),
		zap.Int("preserved", rep.Preserved),
		zap.Int("enriched", rep.Enriched),
		zap.Int("roles_applied", rep.RolesApplied))
	return out, rep
}

func cloneEdges(edges []graph.Edge) []graph.Edge {
	out := make([]graph.Edge, len(edges))
	copy(out, edges)
	return out
}

// view answers predicate lookups over the combined node set.
type view struct {
	g      *graph.Graph
	idx    *graph.Index
	owners map[string]string
}

func newView(g *graph.Graph) *view {
	return &view{g: g, idx: g.Index(), owners: graph.Owners(g)}
}

func (v *view) name(id string) (string, bool) {
	n, ok := v.g.Node(id)
	if !ok {
		return "", false
	}
	return n.Name, true
}

// matches evaluates the conjunction of present predicates.
func (v *view) matches(n *graph.Node, r DetectionRules) bool {
	if len(r.InheritanceIncludes) > 0 && !v.linked(v.idx.Outgoing(n.ID), graph.EdgeExtends, true, r.InheritanceIncludes) {
		return false
	}
	if r.FilePathContains != "" && !v.ownerPathMatches(n.ID, r.FilePathContains) {
		return false
	}
	if len(r.DecoratedBy) > 0 && !v.linked(v.idx.Incoming(n.ID), graph.EdgeDecorates, false, r.DecoratedBy) {
		return false
	}
	if r.RequiresImport != "" && !v.ownerImports(n.ID, r.RequiresImport) {
		return false
	}
	if len(r.UsedInCalls) > 0 && !v.linked(v.idx.Outgoing(n.ID), graph.EdgeCalls, true, r.UsedInCalls) {
		return false
	}
	if len(r.FunctionName) > 0 && !contains(r.FunctionName, n.Name) {
		return false
	}
	return true
}

// linked reports whether any edge of type typ connects to a node whose name
// is in names. outgoing selects the edge target, otherwise the source.
func (v *view) linked(edges []graph.Edge, typ string, outgoing bool, names []string) bool {
	for _, e := range edges {
		if e.Type != typ {
			continue
		}
		other := e.From
		if outgoing {
			other = e.To
		}
		if name, ok := v.name(other); ok && contains(names, name) {
			return true
		}
	}
	return false
}

// ownerPathMatches globs the owning file's path. A pattern without `*` is
// matched as a substring.
func (v *view) ownerPathMatches(id, pattern string) bool {
	owner, ok := v.owners[id]
	if !ok {
		return false
	}
	f, ok := v.g.Node(owner)
	if !ok {
		return false
	}
	target := f.FilePath
	if target == "" {
		target = f.Name
	}
	if !strings.Contains(pattern, "*") {
		pattern = "*" + pattern + "*"
	}
	return globMatch(pattern, target)
}

// ownerImports reports whether the owning file imports a node whose name
// contains token.
func (v *view) ownerImports(id, token string) bool {
	owner, ok := v.owners[id]
	if !ok {
		return false
	}
	for _, e := range v.idx.Outgoing(owner) {
		if e.Type != graph.EdgeImports {
			continue
		}
		if name, ok := v.name(e.To); ok && strings.Contains(name, token) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
