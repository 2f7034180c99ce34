package resolver

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

const (
	complexValue = "<complex>"
	complexCall  = "<complex_call>"
)

// lines returns the one-based line range of n.
func lines(n *sitter.Node) (int, int) {
	return int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}

// docstring returns the cleaned docstring of a module or block, if the first
// statement is a bare string literal.
func docstring(u *unit, body *sitter.Node) string {
	if body == nil {
		return ""
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() == "comment" {
			continue
		}
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
			return ""
		}
		lit := stmt.NamedChild(0)
		if lit.Type() != "string" {
			return ""
		}
		return cleanDoc(stringValue(u.text(lit)))
	}
	return ""
}

// stringValue strips the prefix and quotes of a Python string literal.
func stringValue(lit string) string {
	s := strings.TrimLeft(lit, "rRuUbBfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// cleanDoc removes the common indentation of continuation lines and the
// surrounding blank lines.
func cleanDoc(doc string) string {
	all := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")
	margin := -1
	for _, l := range all[1:] {
		trimmed := strings.TrimLeft(l, " ")
		if trimmed == "" {
			continue
		}
		if indent := len(l) - len(trimmed); margin < 0 || indent < margin {
			margin = indent
		}
	}
	all[0] = strings.TrimLeft(all[0], " ")
	if margin > 0 {
		for i := 1; i < len(all); i++ {
			if len(all[i]) >= margin {
				all[i] = all[i][margin:]
			} else {
				all[i] = strings.TrimLeft(all[i], " ")
			}
		}
	}
	for len(all) > 0 && strings.TrimSpace(all[0]) == "" {
		all = all[1:]
	}
	for len(all) > 0 && strings.TrimSpace(all[len(all)-1]) == "" {
		all = all[:len(all)-1]
	}
	return strings.Join(all, "\n")
}

// isAsync reports whether a function_definition carries the async keyword.
func isAsync(fn *sitter.Node) bool {
	return fn.ChildCount() > 0 && fn.Child(0).Type() == "async"
}

// signature extracts positional parameters, defaults, decorators and the
// return annotation of a function_definition.
func signature(u *unit, fn *sitter.Node, decorators []*sitter.Node) *graph.Signature {
	sig := &graph.Signature{Args: []string{}, Defaults: []string{}, Decorators: []string{}}
	if params := fn.ChildByFieldName("parameters"); params != nil {
	loop:
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "identifier":
				sig.Args = append(sig.Args, u.text(p))
			case "typed_parameter":
				first := p.NamedChild(0)
				if first == nil || first.Type() != "identifier" {
					break loop
				}
				sig.Args = append(sig.Args, u.text(first))
			case "default_parameter", "typed_default_parameter":
				if name := p.ChildByFieldName("name"); name != nil {
					sig.Args = append(sig.Args, u.text(name))
				}
				sig.Defaults = append(sig.Defaults, literalValue(u, p.ChildByFieldName("value")))
			case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
				break loop
			}
		}
	}
	for _, d := range decorators {
		if s := decoratorLabel(u, d); s != "" {
			sig.Decorators = append(sig.Decorators, s)
		}
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		v := literalValue(u, unwrapType(ret))
		sig.Returns = &v
	}
	return sig
}

func unwrapType(n *sitter.Node) *sitter.Node {
	if n.Type() == "type" && n.NamedChildCount() == 1 {
		return n.NamedChild(0)
	}
	return n
}

// literalValue renders names and constants as written and anything else as
// a placeholder.
func literalValue(u *unit, n *sitter.Node) string {
	if n == nil {
		return complexValue
	}
	switch n.Type() {
	case "identifier", "integer", "float":
		return u.text(n)
	case "string":
		return stringValue(u.text(n))
	case "true":
		return "True"
	case "false":
		return "False"
	case "none":
		return "None"
	}
	return complexValue
}

// decoratorLabel renders a decorator for the signature.
func decoratorLabel(u *unit, d *sitter.Node) string {
	expr := decoratorExpr(d)
	if expr == nil {
		return ""
	}
	switch expr.Type() {
	case "identifier":
		return "@" + u.text(expr)
	case "attribute":
		return "@" + u.text(expr.ChildByFieldName("attribute"))
	case "call":
		fn := expr.ChildByFieldName("function")
		switch fn.Type() {
		case "identifier":
			return "@" + u.text(fn) + "(...)"
		case "attribute":
			return "@" + u.text(fn.ChildByFieldName("attribute")) + "(...)"
		}
		return "@" + complexCall
	}
	return ""
}

// decoratorExpr returns the expression of a decorator node.
func decoratorExpr(d *sitter.Node) *sitter.Node {
	if d.NamedChildCount() == 0 {
		return nil
	}
	return d.NamedChild(0)
}

// decorators splits a decorated_definition into its decorators and the
// wrapped definition.
func decorators(n *sitter.Node) ([]*sitter.Node, *sitter.Node) {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "decorator" {
			out = append(out, c)
		}
	}
	return out, n.ChildByFieldName("definition")
}

// assignTargets returns the identifier targets of an assignment and the
// next assignment in a chain (a = b = 1), if any.
func assignTargets(u *unit, n *sitter.Node) ([]string, *sitter.Node) {
	var names []string
	if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
		names = append(names, u.text(left))
	}
	right := n.ChildByFieldName("right")
	if right != nil && right.Type() == "assignment" {
		return names, right
	}
	return names, nil
}
