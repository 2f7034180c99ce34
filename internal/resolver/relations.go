package resolver

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mpcoder1111/Spashta-CKG/internal/builder"
	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// relationWalker is pass two: it re-walks one unit with a hierarchical
// symbol table and emits reference edges to registered targets only.
type relationWalker struct {
	bc    *builder.Context
	u     *unit
	scope *symbolTable
}

func resolveRelations(bc *builder.Context, u *unit) {
	if !bc.Registry.Has(u.rel) {
		return
	}
	w := &relationWalker{bc: bc, u: u}
	w.enter(u.rel)
	w.walk(u.tree.RootNode())
}

// enter pushes a scope seeded with the registry's direct children of id.
func (w *relationWalker) enter(id string) {
	t := newSymbolTable(id, w.scope)
	for _, child := range w.bc.Registry.Children(id) {
		if n, ok := w.bc.Registry.Lookup(child); ok {
			t.define(n.Name, child)
		}
	}
	w.scope = t
}

func (w *relationWalker) exit() {
	w.scope = w.scope.parent
}

func (w *relationWalker) walk(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}
}

func (w *relationWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "class_definition":
		w.class(n, nil)
	case "function_definition":
		w.function(n, nil)
	case "decorated_definition":
		decos, def := decorators(n)
		if def == nil {
			return
		}
		switch def.Type() {
		case "class_definition":
			w.class(def, decos)
		case "function_definition":
			w.function(def, decos)
		}
	case "call":
		w.call(n)
		w.walk(n)
	case "import_statement":
		w.importModules(n)
	case "import_from_statement":
		w.importFrom(n)
	case "assignment":
		w.assign(n)
	default:
		w.walk(n)
	}
}

func (w *relationWalker) class(def *sitter.Node, decos []*sitter.Node) {
	id := w.scope.scopeID + "::" + w.u.text(def.ChildByFieldName("name"))
	if !w.bc.Registry.Has(id) {
		return
	}
	w.decorators(decos, id)
	if bases := def.ChildByFieldName("superclasses"); bases != nil {
		for i := 0; i < int(bases.NamedChildCount()); i++ {
			base := bases.NamedChild(i)
			switch base.Type() {
			case "keyword_argument", "list_splat", "dictionary_splat", "comment":
				continue
			}
			w.base(base, id)
		}
		w.walk(bases)
	}

	w.enter(id)
	if body := def.ChildByFieldName("body"); body != nil {
		w.walk(body)
	}
	w.exit()
}

func (w *relationWalker) function(def *sitter.Node, decos []*sitter.Node) {
	id := w.scope.scopeID + "::" + w.u.text(def.ChildByFieldName("name"))
	if !w.bc.Registry.Has(id) {
		return
	}
	w.decorators(decos, id)

	w.enter(id)
	if params := def.ChildByFieldName("parameters"); params != nil {
		for _, name := range parameterNames(w.u, params) {
			w.scope.defineLocal(name)
		}
	}
	if body := def.ChildByFieldName("body"); body != nil {
		w.walk(body)
	}
	w.exit()
}

// decorators resolves each decorator against target, then visits the
// decorator expressions for calls in the enclosing scope.
func (w *relationWalker) decorators(decos []*sitter.Node, target string) {
	for _, d := range decos {
		expr := decoratorExpr(d)
		if expr == nil {
			continue
		}
		callee := expr
		if expr.Type() == "call" {
			callee = expr.ChildByFieldName("function")
		}
		switch r := w.resolve(callee).(type) {
		case Resolved:
			w.bc.EmitEdge("decorates", r.ID, target, 0)
		case Ambiguous:
			w.bc.Ambiguity(graph.KindDecoratorUnknown, w.u.text(expr), "Decorator not found", target, "")
		}
		w.visit(expr)
	}
}

func (w *relationWalker) base(base *sitter.Node, classID string) {
	switch r := w.resolve(base).(type) {
	case Resolved:
		w.bc.EmitEdge("inherits_from", classID, r.ID, 0)
	case Ambiguous:
		w.bc.Ambiguity(graph.KindInheritanceUnproven, r.Expression, "Base not found", classID, "")
	}
}

func (w *relationWalker) call(n *sitter.Node) {
	caller := w.scope.scopeID
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch r := w.resolve(fn).(type) {
	case Resolved:
		line, _ := lines(n)
		w.bc.EmitEdge("calls", caller, r.ID, line)
	case Ambiguous:
		w.bc.Ambiguity(graph.KindCallTargetUnknown, r.Expression, "Target not proven", caller, "")
	}
}

func (w *relationWalker) assign(n *sitter.Node) {
	writer := w.scope.scopeID
	var last *sitter.Node
	for cur := n; cur != nil; {
		last = cur
		var names []string
		names, cur = assignTargets(w.u, cur)
		for _, name := range names {
			b, ok := w.scope.lookup(name)
			if !ok || b.local {
				continue
			}
			if w.bc.Registry.Type(b.id) == graph.NodeVariable {
				w.bc.EmitEdge("writes_to", writer, b.id, 0)
			}
		}
	}
	if right := last.ChildByFieldName("right"); right != nil {
		w.visit(right)
	}
}

// resolve maps an expression to a registered id. Bare names look outward
// through the scope chain; dotted access resolves the left operand and
// appends the member; self.x falls back to the nearest enclosing class.
func (w *relationWalker) resolve(expr *sitter.Node) Resolution {
	text := w.u.text(expr)
	switch expr.Type() {
	case "identifier":
		b, ok := w.scope.lookup(text)
		if !ok {
			return Ambiguous{Expression: text, Reason: "name not bound in scope"}
		}
		if b.local {
			return Ambiguous{Expression: text, Reason: "name bound to a local parameter"}
		}
		return Resolved{ID: b.id}
	case "attribute":
		obj := expr.ChildByFieldName("object")
		attr := w.u.text(expr.ChildByFieldName("attribute"))
		if left, ok := w.resolve(obj).(Resolved); ok {
			if cand := left.ID + "::" + attr; w.bc.Registry.Has(cand) {
				return Resolved{ID: cand}
			}
		}
		if obj.Type() == "identifier" && w.u.text(obj) == "self" {
			if cls := w.enclosingClass(); cls != "" {
				if cand := cls + "::" + attr; w.bc.Registry.Has(cand) {
					return Resolved{ID: cand}
				}
			}
		}
		return Ambiguous{Expression: text, Reason: "member not registered"}
	}
	return Ambiguous{Expression: text, Reason: "expression is not a name"}
}

func (w *relationWalker) enclosingClass() string {
	for t := w.scope; t != nil; t = t.parent {
		if w.bc.Registry.Type(t.scopeID) == graph.NodeClass {
			return t.scopeID
		}
	}
	return ""
}

// parameterNames returns every name a parameter list binds.
func parameterNames(u *unit, params *sitter.Node) []string {
	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, u.text(p))
		case "default_parameter", "typed_default_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				out = append(out, u.text(name))
			}
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstIdentifier(p); id != nil {
				out = append(out, u.text(id))
			}
		}
	}
	return out
}

func firstIdentifier(n *sitter.Node) *sitter.Node {
	if n.Type() == "identifier" {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if id := firstIdentifier(n.NamedChild(i)); id != nil {
			return id
		}
	}
	return nil
}
