package cond

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/petal-labs/petalplan/tree"
)

// Condition is the interface implemented by every condition variant. The
// set of variants is closed: the parser factory is the only producer, and
// the evaluator consumes the lowered tree IR rather than this AST.
//
// Lower appends the variant's subtree to the destination arena and returns
// the new root's id. The replace list maps scope slot indices to concrete
// object names (typically an action's ground arguments); slots beyond the
// list lower to the "?<slot>" placeholder and are bound later, during
// quantifier grounding.
type Condition interface {
	condition() // marker method
	String() string
	Lower(t *tree.Tree, replace []string) tree.NodeID
}

// Term is one argument of a predicate atom or function reference: either a
// concrete object name (Slot < 0) or a variable resolved to a scope slot.
type Term struct {
	Name string // source spelling; "?x" for variables
	Slot int    // scope slot index, or -1 for constants
}

// lowered returns the name this term contributes to the IR: the concrete
// name for constants, the replacement for slots covered by the replace
// list, and the "?<slot>" placeholder otherwise.
func (term Term) lowered(replace []string) string {
	if term.Slot < 0 {
		return term.Name
	}
	if term.Slot < len(replace) {
		return replace[term.Slot]
	}
	return "?" + strconv.Itoa(term.Slot)
}

func loweredParams(terms []Term, replace []string) []tree.Param {
	params := make([]tree.Param, len(terms))
	for i, term := range terms {
		params[i] = tree.Param{Name: term.lowered(replace)}
	}
	return params
}

// condString prints a possibly-absent condition; an absent condition is the
// empty pair of parentheses.
func condString(c Condition) string {
	if c == nil {
		return "()"
	}
	return c.String()
}

// And is an n-ary conjunction.
type And struct {
	Conds []Condition
}

func (c *And) condition() {}
func (c *And) String() string {
	parts := make([]string, 0, len(c.Conds)+1)
	parts = append(parts, "and")
	for _, sub := range c.Conds {
		parts = append(parts, condString(sub))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (c *And) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return lowerNary(t, tree.KindAnd, c.Conds, replace)
}

// Or is an n-ary disjunction.
type Or struct {
	Conds []Condition
}

func (c *Or) condition() {}
func (c *Or) String() string {
	parts := make([]string, 0, len(c.Conds)+1)
	parts = append(parts, "or")
	for _, sub := range c.Conds {
		parts = append(parts, condString(sub))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (c *Or) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return lowerNary(t, tree.KindOr, c.Conds, replace)
}

func lowerNary(t *tree.Tree, kind tree.Kind, conds []Condition, replace []string) tree.NodeID {
	id := t.Add(tree.Node{Kind: kind})
	for _, sub := range conds {
		if sub == nil {
			continue
		}
		child := sub.Lower(t, replace)
		t.Node(id).Children = append(t.Node(id).Children, child)
	}
	return id
}

// Not negates its single child condition.
type Not struct {
	Cond Condition
}

func (c *Not) condition() {}
func (c *Not) String() string {
	return "(not " + condString(c.Cond) + ")"
}

func (c *Not) Lower(t *tree.Tree, replace []string) tree.NodeID {
	id := t.Add(tree.Node{Kind: tree.KindNot})
	child := c.Cond.Lower(t, replace)
	t.Node(id).Children = append(t.Node(id).Children, child)
	return id
}

// Atom is a predicate application.
type Atom struct {
	Name string
	Args []Term
}

func (c *Atom) condition() {}
func (c *Atom) String() string {
	return applicationString(c.Name, c.Args)
}

func (c *Atom) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return t.Add(tree.Node{
		Kind:   tree.KindPredicate,
		Name:   c.Name,
		Params: loweredParams(c.Args, replace),
	})
}

// FuncRef is a reference to a numeric fluent.
type FuncRef struct {
	Name string
	Args []Term
}

func (c *FuncRef) condition() {}
func (c *FuncRef) String() string {
	return applicationString(c.Name, c.Args)
}

func (c *FuncRef) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return t.Add(tree.Node{
		Kind:   tree.KindFunction,
		Name:   c.Name,
		Params: loweredParams(c.Args, replace),
	})
}

func applicationString(name string, args []Term) string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(name)
	for _, arg := range args {
		sb.WriteString(" ")
		sb.WriteString(arg.Name)
	}
	sb.WriteString(")")
	return sb.String()
}

// Expr is a binary comparison or arithmetic expression.
type Expr struct {
	Op    tree.Op
	Left  Condition
	Right Condition
}

func (c *Expr) condition() {}
func (c *Expr) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Op, condString(c.Left), condString(c.Right))
}

func (c *Expr) Lower(t *tree.Tree, replace []string) tree.NodeID {
	id := t.Add(tree.Node{Kind: tree.KindExpression, Op: c.Op})
	left := c.Left.Lower(t, replace)
	right := c.Right.Lower(t, replace)
	t.Node(id).Children = append(t.Node(id).Children, left, right)
	return id
}

// Modifier updates a numeric fluent: assign, increase, decrease, scale-up
// or scale-down applied to a function reference and an operand expression.
type Modifier struct {
	Op      tree.Op
	Ref     *FuncRef
	Operand Condition
}

func (c *Modifier) condition() {}
func (c *Modifier) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Op, c.Ref.String(), condString(c.Operand))
}

func (c *Modifier) Lower(t *tree.Tree, replace []string) tree.NodeID {
	id := t.Add(tree.Node{Kind: tree.KindFunctionModifier, Op: c.Op})
	left := c.Ref.Lower(t, replace)
	right := c.Operand.Lower(t, replace)
	t.Node(id).Children = append(t.Node(id).Children, left, right)
	return id
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

func (c *NumberLit) condition() {}
func (c *NumberLit) String() string {
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

func (c *NumberLit) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return t.Add(tree.Node{Kind: tree.KindNumber, Value: c.Value})
}

// ConstRef names a concrete object inside an expression, used by symbolic
// equality comparisons.
type ConstRef struct {
	Name string
}

func (c *ConstRef) condition() {}
func (c *ConstRef) String() string {
	return c.Name
}

func (c *ConstRef) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return t.Add(tree.Node{Kind: tree.KindConstant, Name: c.Name})
}

// ParamRef references a bound variable inside an expression.
type ParamRef struct {
	Term Term
}

func (c *ParamRef) condition() {}
func (c *ParamRef) String() string {
	return c.Term.Name
}

func (c *ParamRef) Lower(t *tree.Tree, replace []string) tree.NodeID {
	return t.Add(tree.Node{
		Kind:   tree.KindParameter,
		Params: []tree.Param{{Name: c.Term.lowered(replace)}},
	})
}

// Var is one variable bound by a quantifier: its source spelling, declared
// type and the slot it received in the extended scope.
type Var struct {
	Name string
	Type string
	Slot int
}

// Exists binds one or more variables over the object universe and holds a
// body condition. A nil body is the parsed form of "()" and is legal.
type Exists struct {
	Vars []Var
	Body Condition
}

func (c *Exists) condition() {}
func (c *Exists) String() string {
	var sb strings.Builder
	sb.WriteString("(exists (")
	for i, v := range c.Vars {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(v.Name)
		if v.Type != "" {
			sb.WriteString(" - ")
			sb.WriteString(v.Type)
		}
	}
	sb.WriteString(") ")
	sb.WriteString(condString(c.Body))
	sb.WriteString(")")
	return sb.String()
}

func (c *Exists) Lower(t *tree.Tree, replace []string) tree.NodeID {
	params := make([]tree.Param, len(c.Vars))
	for i, v := range c.Vars {
		name := "?" + strconv.Itoa(v.Slot)
		if v.Slot < len(replace) {
			name = replace[v.Slot]
		}
		params[i] = tree.Param{Name: name, Type: v.Type}
	}
	id := t.Add(tree.Node{Kind: tree.KindExists, Params: params})
	if c.Body != nil {
		child := c.Body.Lower(t, replace)
		t.Node(id).Children = append(t.Node(id).Children, child)
	}
	return id
}

// Lower lowers a condition into a fresh arena and returns it with the root
// id. A nil condition lowers to an empty tree, which evaluates as trivially
// true.
func Lower(c Condition, replace []string) (tree.Tree, tree.NodeID) {
	var t tree.Tree
	if c == nil {
		return t, 0
	}
	root := c.Lower(&t, replace)
	return t, root
}

// Compile-time interface checks.
var (
	_ Condition = (*And)(nil)
	_ Condition = (*Or)(nil)
	_ Condition = (*Not)(nil)
	_ Condition = (*Atom)(nil)
	_ Condition = (*FuncRef)(nil)
	_ Condition = (*Expr)(nil)
	_ Condition = (*Modifier)(nil)
	_ Condition = (*NumberLit)(nil)
	_ Condition = (*ConstRef)(nil)
	_ Condition = (*ParamRef)(nil)
	_ Condition = (*Exists)(nil)
)
