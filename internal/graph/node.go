package graph

import (
	"encoding/json"
	"slices"
)

// Signature describes a callable's parameters, decorators and return
// annotation as written in source.
type Signature struct {
	Args       []string `json:"args"`
	Defaults   []string `json:"defaults"`
	Decorators []string `json:"decorators"`
	Returns    *string  `json:"returns"`
}

// Node is a single vertex in a fragment or graph.
type Node struct {
	ID            string            `json:"id"`
	Type          NodeType          `json:"node_type"`
	Name          string            `json:"name"`
	FilePath      string            `json:"file_path,omitempty"`
	LineStart     int               `json:"line_start,omitempty"`
	LineEnd       int               `json:"line_end,omitempty"`
	Confidence    Confidence        `json:"analysis_confidence,omitempty"`
	Hash          string            `json:"hash,omitempty"`
	Docstring     string            `json:"docstring,omitempty"`
	Signature     *Signature        `json:"signature,omitempty"`
	IsAsync       bool              `json:"is_async,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	SemanticRoles []string          `json:"semantic_roles,omitempty"`

	// rawType keeps the type name as received when it is not part of the
	// vocabulary, so validators can report it.
	rawType string
}

// RawType returns the node type name as it appeared in the input.
func (n *Node) RawType() string {
	if n.rawType != "" {
		return n.rawType
	}
	if n.Type == NodeUnknown {
		return ""
	}
	return n.Type.String()
}

// HasRole reports whether role was already attached to n.
func (n *Node) HasRole(role string) bool {
	return slices.Contains(n.SemanticRoles, role)
}

// AddRole appends role unless present. Returns true when the role was added.
func (n *Node) AddRole(role string) bool {
	if n.HasRole(role) {
		return false
	}
	n.SemanticRoles = append(n.SemanticRoles, role)
	return true
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	c := n
	if n.Signature != nil {
		sig := *n.Signature
		sig.Args = slices.Clone(n.Signature.Args)
		sig.Defaults = slices.Clone(n.Signature.Defaults)
		sig.Decorators = slices.Clone(n.Signature.Decorators)
		if n.Signature.Returns != nil {
			r := *n.Signature.Returns
			sig.Returns = &r
		}
		c.Signature = &sig
	}
	if n.Attributes != nil {
		c.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			c.Attributes[k] = v
		}
	}
	c.SemanticRoles = slices.Clone(n.SemanticRoles)
	return c
}

// UnmarshalJSON accepts node_type or type for the kind and hash or
// file_hash for the content hash. Unknown kinds decode to NodeUnknown.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var aux struct {
		plain
		NodeType  string `json:"node_type"`
		TypeAlias string `json:"type"`
		FileHash  string `json:"file_hash"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Node(aux.plain)

	name := aux.NodeType
	if name == "" {
		name = aux.TypeAlias
	}
	if t, ok := ParseNodeType(name); ok {
		n.Type = t
		n.rawType = ""
	} else {
		n.Type = NodeUnknown
		n.rawType = name
	}
	if n.Hash == "" {
		n.Hash = aux.FileHash
	}
	return nil
}
