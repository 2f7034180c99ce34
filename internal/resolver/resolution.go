package resolver

// Resolution is the outcome of resolving one reference: either the id of a
// registered node or the reason the target could not be proven.
type Resolution interface {
	resolution()
}

// Resolved names a registered target.
type Resolved struct {
	ID string
}

// Ambiguous carries the literal source text of an unprovable reference.
// The caller decides the ambiguity kind.
type Ambiguous struct {
	Expression string
	Reason     string
}

func (Resolved) resolution()  {}
func (Ambiguous) resolution() {}
