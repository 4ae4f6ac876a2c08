// Package tree provides the arena-based node IR shared by the condition
// parser and the evaluator. A Tree owns a flat, append-only slice of nodes;
// nodes reference children by integer NodeID rather than by pointer, so a
// single arena can hold a forest of independent expression roots.
package tree

// Kind identifies the type of a node in the condition tree.
// The set of kinds is closed; the evaluator dispatches on it.
type Kind string

const (
	KindAnd              Kind = "and"
	KindOr               Kind = "or"
	KindNot              Kind = "not"
	KindPredicate        Kind = "predicate"
	KindFunction         Kind = "function"
	KindExpression       Kind = "expression"
	KindFunctionModifier Kind = "function_modifier"
	KindNumber           Kind = "number"
	KindConstant         Kind = "constant"
	KindParameter        Kind = "parameter"
	KindExists           Kind = "exists"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Op is the sub-discriminant for Expression and FunctionModifier nodes.
type Op string

// Comparison and arithmetic operators (Expression nodes).
const (
	OpGE  Op = ">="
	OpGT  Op = ">"
	OpLE  Op = "<="
	OpLT  Op = "<"
	OpEQ  Op = "="
	OpMul Op = "*"
	OpDiv Op = "/"
	OpAdd Op = "+"
	OpSub Op = "-"
)

// Fluent modifiers (FunctionModifier nodes).
const (
	OpAssign    Op = "assign"
	OpIncrease  Op = "increase"
	OpDecrease  Op = "decrease"
	OpScaleUp   Op = "scale-up"
	OpScaleDown Op = "scale-down"
)

// NodeID is the position of a node in its owning tree's node array.
// IDs are assigned monotonically and never reused or freed.
type NodeID int

// Param is a single parameter binding on a node. A resolved binding names a
// concrete object; an unbound binding carries the "?<slot>" placeholder left
// by lowering, where <slot> is a variable-scope slot index.
type Param struct {
	Name string
	Type string // optional object type; empty when untyped
}

// Unbound reports whether the parameter is still a symbolic placeholder.
func (p Param) Unbound() bool {
	return len(p.Name) > 0 && p.Name[0] == '?'
}

// Node is one element of the arena. Only the fields relevant to its Kind
// are meaningful: Op for Expression/FunctionModifier, Name for
// Predicate/Function/Constant, Value for Number, Params for nodes that
// carry object bindings.
type Node struct {
	ID       NodeID
	Kind     Kind
	Children []NodeID
	Op       Op
	Name     string
	Params   []Param
	Value    float64
}

// Tree is an append-only arena of nodes. Roots are not tracked by the tree
// itself; callers keep the NodeID returned when a subtree is lowered.
type Tree struct {
	Nodes []Node
}

// Add appends a node, assigns its ID from the current length, and returns
// the ID. Children may be appended after their parent (quantifier bodies
// are lowered after their Exists node), so Add never validates child IDs.
func (t *Tree) Add(n Node) NodeID {
	n.ID = NodeID(len(t.Nodes))
	t.Nodes = append(t.Nodes, n)
	return n.ID
}

// Node returns a pointer to the node with the given ID.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Empty reports whether the arena holds no nodes. Evaluating an empty tree
// is a well-formed no-op, not an error.
func (t *Tree) Empty() bool {
	return len(t.Nodes) == 0
}

// Clone returns a deep copy of the tree. Children and parameter slices are
// copied so mutations of the clone never reach the original.
func (t Tree) Clone() Tree {
	out := Tree{Nodes: make([]Node, len(t.Nodes))}
	for i, n := range t.Nodes {
		c := n
		if n.Children != nil {
			c.Children = make([]NodeID, len(n.Children))
			copy(c.Children, n.Children)
		}
		if n.Params != nil {
			c.Params = make([]Param, len(n.Params))
			copy(c.Params, n.Params)
		}
		out.Nodes[i] = c
	}
	return out
}

// SameFact reports structural equality of two nodes as state facts: same
// name and same ordered parameter names. Arena bookkeeping (ID, children)
// and parameter types are ignored; this is the match used to locate a
// predicate or function inside a state collection.
func SameFact(a, b Node) bool {
	if a.Name != b.Name || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Name != b.Params[i].Name {
			return false
		}
	}
	return true
}
