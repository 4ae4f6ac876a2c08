package cond

// Binding is a single (name, type) variable binding in a Scope.
type Binding struct {
	Name string
	Type string
}

// Scope is an ordered, append-only sequence of variable bindings. A
// variable's slot index is its position in the sequence and stays
// meaningful for the lifetime of the scope chain: nested scopes are built
// by copy-extension, never by mutation of the enclosing scope, so sibling
// conditions never observe a quantifier's local bindings.
type Scope struct {
	bindings []Binding
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Append adds a binding and returns its slot index. Indices are assigned
// monotonically; there is no removal operation.
func (s *Scope) Append(name, typ string) int {
	s.bindings = append(s.bindings, Binding{Name: name, Type: typ})
	return len(s.bindings) - 1
}

// Size returns the number of bindings.
func (s *Scope) Size() int {
	return len(s.bindings)
}

// Clone returns an independent copy of the scope.
func (s *Scope) Clone() *Scope {
	out := &Scope{bindings: make([]Binding, len(s.bindings))}
	copy(out.bindings, s.bindings)
	return out
}

// Extend returns a new scope holding this scope's bindings followed by
// other's. Slot indices of other's bindings are shifted by s.Size(), which
// falls out of plain concatenation.
func (s *Scope) Extend(other *Scope) *Scope {
	out := &Scope{bindings: make([]Binding, 0, len(s.bindings)+len(other.bindings))}
	out.bindings = append(out.bindings, s.bindings...)
	out.bindings = append(out.bindings, other.bindings...)
	return out
}

// Lookup resolves a variable name to its slot index. When a name is bound
// more than once the innermost (latest) binding wins.
func (s *Scope) Lookup(name string) (int, bool) {
	for i := len(s.bindings) - 1; i >= 0; i-- {
		if s.bindings[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// Binding returns the binding at the given slot.
func (s *Scope) Binding(slot int) (Binding, bool) {
	if slot < 0 || slot >= len(s.bindings) {
		return Binding{}, false
	}
	return s.bindings[slot], true
}
