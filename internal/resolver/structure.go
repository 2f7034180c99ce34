package resolver

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// scope is one entry of the declaration stack.
type scope struct {
	id  string
	typ graph.NodeType
}

// structureWalker is pass one: it registers declarations top-down with a
// File, Class, Function/Method scope stack and emits containment edges.
type structureWalker struct {
	bc    *builder.Context
	u     *unit
	stack []scope
}

func nodeType(bc *builder.Context, construct string, fallback graph.NodeType) graph.NodeType {
	if t, ok := bc.Mapping().NodeType(construct); ok {
		return t
	}
	return fallback
}

func registerStructure(bc *builder.Context, u *unit) {
	root := u.tree.RootNode()
	fileType := nodeType(bc, "Module", graph.NodeFile)
	file := graph.Node{
		ID:         u.rel,
		Type:       fileType,
		Name:       fileName(u.rel),
		FilePath:   u.rel,
		Confidence: graph.ConfidenceStructural,
		Hash:       builder.ContentHash(u.src),
		Docstring:  docstring(u, root),
	}
	if !bc.Register("", file) {
		return
	}
	w := &structureWalker{bc: bc, u: u, stack: []scope{{id: u.rel, typ: fileType}}}
	w.walk(root)
}

func (w *structureWalker) top() scope {
	return w.stack[len(w.stack)-1]
}

func (w *structureWalker) walk(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}
}

func (w *structureWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "class_definition":
		w.class(n)
	case "function_definition":
		w.function(n, nil)
	case "decorated_definition":
		decos, def := decorators(n)
		if def == nil {
			return
		}
		switch def.Type() {
		case "class_definition":
			w.class(def)
		case "function_definition":
			w.function(def, decos)
		}
	case "assignment":
		w.assign(n)
	default:
		w.walk(n)
	}
}

func (w *structureWalker) class(def *sitter.Node) {
	parent := w.top()
	name := w.u.text(def.ChildByFieldName("name"))
	if !parent.typ.IsFileKind() {
		w.bc.Ambiguity(graph.KindNestedClassUnmodeled, name,
			fmt.Sprintf("Class nested in a %s is not modeled by the core schema", parent.typ),
			parent.id, graph.ConfidenceStructuralViolation)
		return
	}

	id := parent.id + "::" + name
	body := def.ChildByFieldName("body")
	start, end := lines(def)
	n := graph.Node{
		ID:         id,
		Type:       nodeType(w.bc, "ClassDef", graph.NodeClass),
		Name:       name,
		FilePath:   w.u.rel,
		LineStart:  start,
		LineEnd:    end,
		Confidence: graph.ConfidenceStructural,
		Docstring:  docstring(w.u, body),
	}
	if w.bc.Register(parent.id, n) {
		w.bc.EmitEdge("defines_class", parent.id, id, 0)
	}

	w.stack = append(w.stack, scope{id: id, typ: n.Type})
	if body != nil {
		w.walk(body)
	}
	w.stack = w.stack[:len(w.stack)-1]
}

func (w *structureWalker) function(def *sitter.Node, decos []*sitter.Node) {
	parent := w.top()
	name := w.u.text(def.ChildByFieldName("name"))
	if parent.typ == graph.NodeFunction || parent.typ == graph.NodeMethod {
		w.bc.Ambiguity(graph.KindNestedFunctionUnmodeled, name, "Nested definition skipped", parent.id, "")
		return
	}

	typ := nodeType(w.bc, "FunctionDef", graph.NodeFunction)
	logical := "defines_function"
	if parent.typ == graph.NodeClass {
		typ = graph.NodeMethod
		logical = "contains_method"
	}

	id := parent.id + "::" + name
	body := def.ChildByFieldName("body")
	start, end := lines(def)
	n := graph.Node{
		ID:         id,
		Type:       typ,
		Name:       name,
		FilePath:   w.u.rel,
		LineStart:  start,
		LineEnd:    end,
		Confidence: graph.ConfidenceStructural,
		Docstring:  docstring(w.u, body),
		Signature:  signature(w.u, def, decos),
		IsAsync:    isAsync(def),
	}
	if w.bc.Register(parent.id, n) {
		w.bc.EmitEdge(logical, parent.id, id, 0)
	}

	w.stack = append(w.stack, scope{id: id, typ: typ})
	if body != nil {
		w.walk(body)
	}
	w.stack = w.stack[:len(w.stack)-1]
}

func (w *structureWalker) assign(n *sitter.Node) {
	parent := w.top()
	logical := "contains_variable"
	if parent.typ.IsFileKind() {
		logical = "defines"
	}
	start, end := lines(n)
	for cur := n; cur != nil; {
		var names []string
		names, cur = assignTargets(w.u, cur)
		for _, name := range names {
			id := parent.id + "::" + name
			v := graph.Node{
				ID:         id,
				Type:       nodeType(w.bc, "Assign", graph.NodeVariable),
				Name:       name,
				FilePath:   w.u.rel,
				LineStart:  start,
				LineEnd:    end,
				Confidence: graph.ConfidenceStructural,
			}
			if w.bc.Register(parent.id, v) {
				w.bc.EmitEdge(logical, parent.id, id, 0)
			}
		}
	}
}
