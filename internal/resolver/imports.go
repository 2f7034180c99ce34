package resolver

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mpcoder1111/Spashta-CKG/internal/graph"
)

// importModules handles `import a.b [as c]`.
func (w *relationWalker) importModules(n *sitter.Node) {
	importer := w.scope.scopeID
	for i := 0; i < int(n.NamedChildCount()); i++ {
		name, alias := importName(w.u, n.NamedChild(i))
		if name == "" {
			continue
		}
		target, ok := w.findModule(name)
		if !ok {
			w.bc.Ambiguity(graph.KindImportModuleUnknown, name, "File not found", importer, "")
			continue
		}
		w.bc.EmitEdge("import", importer, target, 0)
		if alias == "" {
			alias = name
		}
		w.scope.define(alias, target)
	}
}

// importFrom handles `from m import x [as y]` including relative forms.
func (w *relationWalker) importFrom(n *sitter.Node) {
	importer := w.scope.scopeID
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}

	moduleID, ok := "", false
	if mod.Type() == "relative_import" {
		level, module := relativeParts(w.u, mod)
		if base, valid := relativeBase(w.u.rel, level, module); valid {
			moduleID, ok = w.fileID(base)
		}
	} else {
		moduleID, ok = w.findModule(w.u.text(mod))
	}
	if !ok {
		w.bc.Ambiguity(graph.KindImportModuleUnknown, w.u.text(mod), "Module not found", importer, "")
		return
	}

	w.bc.EmitEdge("import_from", importer, moduleID, 0)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.StartByte() == mod.StartByte() && c.EndByte() == mod.EndByte() {
			continue
		}
		if c.Type() == "wildcard_import" {
			w.bc.Ambiguity(graph.KindImportSymbolTypeUnknown, "*", "Wildcard import binds no provable symbol", importer, "")
			continue
		}
		name, alias := importName(w.u, c)
		if name == "" {
			continue
		}
		if alias == "" {
			alias = name
		}
		target := moduleID + "::" + name
		if !w.bc.Registry.Has(target) {
			sub, found := w.submodule(moduleID, name)
			if !found {
				w.bc.Ambiguity(graph.KindImportSymbolTypeUnknown, name, "Symbol missing in target", importer, "")
				continue
			}
			target = sub
		}
		w.bc.EmitEdge("import", importer, target, 0)
		w.scope.define(alias, target)
	}
}

func importName(u *unit, n *sitter.Node) (name, alias string) {
	switch n.Type() {
	case "dotted_name":
		return u.text(n), ""
	case "aliased_import":
		if nm := n.ChildByFieldName("name"); nm != nil {
			name = u.text(nm)
		}
		if al := n.ChildByFieldName("alias"); al != nil {
			alias = u.text(al)
		}
		return name, alias
	}
	return "", ""
}

// relativeParts returns the dot count and the dotted module of a
// relative_import node.
func relativeParts(u *unit, n *sitter.Node) (int, string) {
	level, module := 0, ""
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_prefix":
			level = strings.Count(u.text(c), ".")
		case "dotted_name":
			module = u.text(c)
		}
	}
	return level, module
}

// relativeBase walks up level-1 directories from the importing unit and
// appends module. Returns false when the walk leaves the project root.
func relativeBase(rel string, level int, module string) (string, bool) {
	parts := strings.Split(rel, "/")
	dir := parts[:len(parts)-1]
	up := level - 1
	if up > len(dir) {
		return "", false
	}
	base := append([]string{}, dir[:len(dir)-up]...)
	if module != "" {
		base = append(base, strings.ReplaceAll(module, ".", "/"))
	}
	return strings.Join(base, "/"), true
}

// fileID returns the registered unit for a slash path without extension:
// the module file first, then the package's __init__.py.
func (w *relationWalker) fileID(base string) (string, bool) {
	candidates := []string{base + ".py", base + "/__init__.py"}
	if base == "" {
		candidates = []string{"__init__.py"}
	}
	for _, c := range candidates {
		if w.bc.Registry.Type(c).IsFileKind() {
			return c, true
		}
	}
	return "", false
}

// findModule matches an absolute dotted module against registered units by
// path suffix.
func (w *relationWalker) findModule(dotted string) (string, bool) {
	guess := strings.ReplaceAll(dotted, ".", "/")
	for _, want := range []string{guess + ".py", guess + "/__init__.py"} {
		for _, id := range w.bc.Registry.IDs() {
			if !w.bc.Registry.Type(id).IsFileKind() {
				continue
			}
			if id == want || strings.HasSuffix(id, "/"+want) {
				return id, true
			}
		}
	}
	return "", false
}

// submodule resolves `from pkg import mod` where mod is a sibling unit of
// the package's __init__.py.
func (w *relationWalker) submodule(moduleID, name string) (string, bool) {
	if moduleID != "__init__.py" && !strings.HasSuffix(moduleID, "/__init__.py") {
		return "", false
	}
	dir := strings.TrimSuffix(strings.TrimSuffix(moduleID, "__init__.py"), "/")
	if dir != "" {
		dir += "/"
	}
	return w.fileID(dir + name)
}
