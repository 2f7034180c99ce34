// Package builder holds what every language builder shares: the per-run
// Registry, the emission Context that gates edges through the language
// mapping and the core schema, and the tree-sitter grammar table.
package builder

import (
	"context"

	"go.uber.org/zap"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

// Log entry types recorded in fragments.
const (
	LogParseError = "parse_error"
	LogReadError  = "read_error"
	LogScriptLog  = "script"
)

// Builder observes one language and produces its fragment.
type Builder interface {
	Language() string
	Build(ctx context.Context, root string, units []string) (*graph.Fragment, error)
}

// Versioned is implemented by builders written in Go. Version changes
// whenever the same sources would produce a different fragment, which
// invalidates cached fragments.
type Versioned interface {
	Version() string
}

// Context accumulates one builder run. Nodes enter through Register, edges
// through EmitEdge, and everything that cannot be proven through Ambiguity.
type Context struct {
	Registry *Registry

	schema  *schema.Schema
	mapping *schema.Mapping
	frag    *graph.Fragment
	seen    map[graph.EdgeKey]bool
	logger  *zap.Logger
}

// NewContext returns a Context for mapping's language.
func NewContext(s *schema.Schema, m *schema.Mapping, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		Registry: NewRegistry(),
		schema:   s,
		mapping:  m,
		frag:     graph.NewFragment(m.Language),
		seen:     make(map[graph.EdgeKey]bool),
		logger:   logger,
	}
}

// Mapping returns the language mapping in use.
func (c *Context) Mapping() *schema.Mapping {
	return c.mapping
}

// Fragment returns the fragment built so far.
func (c *Context) Fragment() *graph.Fragment {
	return c.frag
}

// Register adds n under parent to the registry and the fragment. A second
// registration of the same id is a no-op and returns false.
func (c *Context) Register(parent string, n graph.Node) bool {
	if !c.Registry.Register(parent, n) {
		return false
	}
	c.frag.Nodes = append(c.frag.Nodes, n)
	return true
}

// EmitEdge proposes a logical edge between two registered nodes. Edges with
// an unregistered endpoint are dropped. The mapping gate runs first, then
// the schema gate; a rejection becomes a structural_violation ambiguity
// scoped at src. Returns true when an edge was recorded.
func (c *Context) EmitEdge(logical, src, dst string, callLine int) bool {
	srcNode, ok := c.Registry.Lookup(src)
	if !ok {
		return false
	}
	dstNode, ok := c.Registry.Lookup(dst)
	if !ok {
		return false
	}
	core, rej := c.mapping.Gate(c.schema, logical, srcNode.Type, dstNode.Type)
	if rej != nil {
		c.Ambiguity(rej.Kind, rej.Expression, rej.Reason, src, graph.ConfidenceStructuralViolation)
		return false
	}
	e := graph.Edge{Type: core, From: src, To: dst, CallLine: callLine}
	if c.seen[e.Key()] {
		return true
	}
	c.seen[e.Key()] = true
	c.frag.Edges = append(c.frag.Edges, e)
	return true
}

// Ambiguity records a ticket. An empty confidence means unresolved.
func (c *Context) Ambiguity(kind, expression, reason, scope string, confidence graph.Confidence) {
	a := graph.NewAmbiguity(kind, expression, reason, scope, confidence, len(c.frag.Ambiguities))
	c.frag.Ambiguities = append(c.frag.Ambiguities, a)
}

// Log records a unit-scoped degradation in the fragment and mirrors it to
// the logger.
func (c *Context) Log(typ, file, message string) {
	c.frag.Logs = append(c.frag.Logs, graph.LogEntry{Type: typ, File: file, Message: message})
	c.logger.Warn("builder degradation",
		zap.String("language", c.mapping.Language),
		zap.String("type", typ),
		zap.String("file", file),
		zap.String("message", message))
}
