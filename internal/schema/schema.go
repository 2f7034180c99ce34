// Package schema holds the core node/edge vocabulary, the per-language
// mapping of logical relationships onto core edges, and the validator that
// gates builder fragments before merge.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

//go:embed data/*.json
var dataFS embed.FS

// EdgeRule lists the node types an edge type may connect.
type EdgeRule struct {
	From []string `json:"from"`
	To   []string `json:"to"`
}

type schemaFile struct {
	Version   string                         `json:"version"`
	NodeTypes []string                       `json:"node_types"`
	Edges     map[string]map[string]EdgeRule `json:"edges"`
}

type edgeRule struct {
	from map[graph.NodeType]bool
	to   map[graph.NodeType]bool
}

// Schema is the read-only enforcer for (edge_type, src_type, dst_type)
// triples.
type Schema struct {
	version   string
	nodeTypes map[graph.NodeType]bool
	edges     map[string]edgeRule
}

// Default returns the embedded core schema.
func Default() *Schema {
	data, err := dataFS.ReadFile("data/core.json")
	if err != nil {
		panic(fmt.Sprintf("schema: embedded core schema: %v", err))
	}
	s, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded core schema: %v", err))
	}
	return s
}

// LoadFile reads a schema document from path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a schema document. Node types outside the closed
// vocabulary and edge rules naming undeclared node types are errors.
func Parse(data []byte) (*Schema, error) {
	var f schemaFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(f.NodeTypes) == 0 {
		return nil, fmt.Errorf("schema declares no node types")
	}

	s := &Schema{
		version:   f.Version,
		nodeTypes: make(map[graph.NodeType]bool, len(f.NodeTypes)),
		edges:     make(map[string]edgeRule),
	}
	for _, name := range f.NodeTypes {
		t, ok := graph.ParseNodeType(name)
		if !ok {
			return nil, fmt.Errorf("unknown node type %q", name)
		}
		s.nodeTypes[t] = true
	}

	categories := make([]string, 0, len(f.Edges))
	for c := range f.Edges {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, category := range categories {
		if category == "_meta" {
			continue
		}
		for edgeType, rule := range f.Edges[category] {
			if _, dup := s.edges[edgeType]; dup {
				return nil, fmt.Errorf("edge type %q declared twice", edgeType)
			}
			from, err := s.typeSet(rule.From)
			if err != nil {
				return nil, fmt.Errorf("edge %s: %w", edgeType, err)
			}
			to, err := s.typeSet(rule.To)
			if err != nil {
				return nil, fmt.Errorf("edge %s: %w", edgeType, err)
			}
			s.edges[edgeType] = edgeRule{from: from, to: to}
		}
	}
	return s, nil
}

func (s *Schema) typeSet(names []string) (map[graph.NodeType]bool, error) {
	set := make(map[graph.NodeType]bool, len(names))
	for _, name := range names {
		t, ok := graph.ParseNodeType(name)
		if !ok || !s.nodeTypes[t] {
			return nil, fmt.Errorf("undeclared node type %q", name)
		}
		set[t] = true
	}
	return set, nil
}

// Version returns the schema's declared version string.
func (s *Schema) Version() string {
	return s.version
}

// HasNodeType reports whether t is modeled by this schema.
func (s *Schema) HasNodeType(t graph.NodeType) bool {
	switch t {
	case graph.NodeFile, graph.NodeClass, graph.NodeFunction, graph.NodeMethod,
		graph.NodeVariable, graph.NodeTemplate, graph.NodeEndpoint, graph.NodeAsset,
		graph.NodeStylesheet, graph.NodeStyleClass, graph.NodeStyleID:
		return s.nodeTypes[t]
	case graph.NodeUnknown:
		return false
	}
	return false
}

// HasEdgeType reports whether edgeType is registered.
func (s *Schema) HasEdgeType(edgeType string) bool {
	_, ok := s.edges[edgeType]
	return ok
}

// EdgeTypes returns the registered edge types in sorted order.
func (s *Schema) EdgeTypes() []string {
	out := make([]string, 0, len(s.edges))
	for e := range s.edges {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// IsAllowed reports whether an edge of edgeType may connect a src node to
// a dst node. Unregistered edge types are never allowed.
func (s *Schema) IsAllowed(edgeType string, src, dst graph.NodeType) bool {
	rule, ok := s.edges[edgeType]
	if !ok {
		return false
	}
	if !s.HasNodeType(src) || !s.HasNodeType(dst) {
		return false
	}
	return rule.from[src] && rule.to[dst]
}

// AllowsSource reports whether edgeType may originate at a node of type t.
func (s *Schema) AllowsSource(edgeType string, t graph.NodeType) bool {
	rule, ok := s.edges[edgeType]
	return ok && s.HasNodeType(t) && rule.from[t]
}

// AllowsTarget reports whether edgeType may terminate at a node of type t.
func (s *Schema) AllowsTarget(edgeType string, t graph.NodeType) bool {
	rule, ok := s.edges[edgeType]
	return ok && s.HasNodeType(t) && rule.to[t]
}
