package resolver

// binding is a name visible in a scope. Locals (parameters) shadow outer
// names but never resolve to a node.
type binding struct {
	id    string
	local bool
}

// symbolTable is one scope level. Lookup walks local, enclosing, then file.
type symbolTable struct {
	scopeID string
	parent  *symbolTable
	symbols map[string]binding
}

func newSymbolTable(scopeID string, parent *symbolTable) *symbolTable {
	return &symbolTable{
		scopeID: scopeID,
		parent:  parent,
		symbols: make(map[string]binding),
	}
}

func (t *symbolTable) define(name, id string) {
	t.symbols[name] = binding{id: id}
}

func (t *symbolTable) defineLocal(name string) {
	t.symbols[name] = binding{local: true}
}

func (t *symbolTable) lookup(name string) (binding, bool) {
	for s := t; s != nil; s = s.parent {
		if b, ok := s.symbols[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}
