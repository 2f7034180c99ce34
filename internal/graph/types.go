package graph

import (
	"fmt"
)

// NodeType is the closed vocabulary of node kinds a graph may contain.
type NodeType uint8

const (
	NodeUnknown NodeType = iota
	NodeFile
	NodeClass
	NodeFunction
	NodeMethod
	NodeVariable
	NodeTemplate
	NodeEndpoint
	NodeAsset
	NodeStylesheet
	NodeStyleClass
	NodeStyleID
)

var nodeTypeNames = [...]string{
	NodeUnknown:    "Unknown",
	NodeFile:       "File",
	NodeClass:      "Class",
	NodeFunction:   "Function",
	NodeMethod:     "Method",
	NodeVariable:   "Variable",
	NodeTemplate:   "Template",
	NodeEndpoint:   "Endpoint",
	NodeAsset:      "Asset",
	NodeStylesheet: "Stylesheet",
	NodeStyleClass: "StyleClass",
	NodeStyleID:    "StyleID",
}

// AllNodeTypes returns every known node type in declaration order,
// excluding NodeUnknown.
func AllNodeTypes() []NodeType {
	types := make([]NodeType, 0, len(nodeTypeNames)-1)
	for t := NodeFile; int(t) < len(nodeTypeNames); t++ {
		types = append(types, t)
	}
	return types
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", uint8(t))
}

// ParseNodeType maps a type name to its NodeType. Unknown names return
// NodeUnknown and false.
func ParseNodeType(s string) (NodeType, bool) {
	for i, name := range nodeTypeNames {
		if i == int(NodeUnknown) {
			continue
		}
		if name == s {
			return NodeType(i), true
		}
	}
	return NodeUnknown, false
}

// IsFileKind reports whether nodes of this type represent a whole source
// unit and carry a content hash.
func (t NodeType) IsFileKind() bool {
	switch t {
	case NodeFile, NodeTemplate, NodeStylesheet:
		return true
	case NodeUnknown, NodeClass, NodeFunction, NodeMethod, NodeVariable,
		NodeEndpoint, NodeAsset, NodeStyleClass, NodeStyleID:
		return false
	}
	return false
}

func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *NodeType) UnmarshalText(b []byte) error {
	parsed, ok := ParseNodeType(string(b))
	if !ok {
		return fmt.Errorf("graph: unknown node type %q", string(b))
	}
	*t = parsed
	return nil
}

// Confidence grades how a node or ambiguity was established.
type Confidence string

const (
	ConfidenceStructural          Confidence = "structural"
	ConfidenceHeuristic           Confidence = "heuristic"
	ConfidenceUnresolved          Confidence = "unresolved"
	ConfidenceStructuralViolation Confidence = "structural_violation"
)

// ValidForNode reports whether c may appear as a node's analysis_confidence.
func (c Confidence) ValidForNode() bool {
	return c == ConfidenceStructural || c == ConfidenceHeuristic
}

// ValidForAmbiguity reports whether c may appear on an ambiguity ticket.
func (c Confidence) ValidForAmbiguity() bool {
	switch c {
	case ConfidenceUnresolved, ConfidenceHeuristic, ConfidenceStructuralViolation:
		return true
	}
	return false
}

// Core edge types referenced by the engine itself. Schemas may register more.
const (
	EdgeDefines          = "defines"
	EdgeContainsClass    = "contains_class"
	EdgeContainsMethod   = "contains_method"
	EdgeContainsMember   = "contains_member"
	EdgeContainsVariable = "contains_variable"
	EdgeDecorates        = "decorates"
	EdgeExtends          = "extends"
	EdgeCalls            = "calls"
	EdgeImports          = "imports"
	EdgeWritesTo         = "writes_to"
)

// ContainmentEdges are the structural ownership edges along which file
// ownership propagates.
var ContainmentEdges = map[string]bool{
	EdgeDefines:          true,
	EdgeContainsClass:    true,
	EdgeContainsMethod:   true,
	EdgeContainsMember:   true,
	EdgeContainsVariable: true,
}
