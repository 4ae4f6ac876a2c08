// Package eval walks a condition tree against a state store. The same
// recursive evaluation serves both read-only checks and effect application;
// an apply flag selects between them, and negation is threaded down as a
// flag rather than materialized as extra nodes.
package eval

import (
	"context"
	"log/slog"
	"math"

	"github.com/petal-labs/petalplan/state"
	"github.com/petal-labs/petalplan/tree"
)

// divisionEpsilon is the magnitude below which a divisor counts as zero.
const divisionEpsilon = 1e-5

// Result is the outcome of evaluating one subtree.
//
// Success reports that evaluation itself went through: every fluent read
// resolved, no division by zero, no malformed node. Truth is the logical
// value of the subtree and is only meaningful when Success is true. Value
// carries the numeric result of arithmetic and fluent subtrees.
type Result struct {
	Success bool    `json:"success"`
	Truth   bool    `json:"truth"`
	Value   float64 `json:"value"`
}

// Config configures an Evaluator.
type Config struct {
	// Store is the state backend to evaluate against. Required.
	Store state.Store

	// Logger receives evaluation diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records evaluation instrumentation. Optional.
	Metrics *Metrics
}

// Evaluator evaluates condition trees against a state store.
type Evaluator struct {
	store   state.Store
	log     *slog.Logger
	metrics *Metrics
}

// NewEvaluator creates an evaluator over the given store.
func NewEvaluator(cfg Config) *Evaluator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{store: cfg.Store, log: log, metrics: cfg.Metrics}
}

// Evaluate walks the subtree rooted at id. With apply false the store is
// only read; with apply true predicate and fluent-modifier nodes commit
// their effects as they are reached. An empty tree evaluates to the trivial
// truth.
func (e *Evaluator) Evaluate(ctx context.Context, t *tree.Tree, id tree.NodeID, apply bool) Result {
	res := e.evaluate(ctx, t, id, apply, false)
	if e.metrics != nil {
		e.metrics.recordEvaluation(ctx, apply, res)
	}
	return res
}

// Check reports whether the condition rooted at id currently holds.
func (e *Evaluator) Check(ctx context.Context, t *tree.Tree, id tree.NodeID) bool {
	return e.Evaluate(ctx, t, id, false).Truth
}

// Apply commits the effects of the subtree rooted at id and reports whether
// every effect went through.
func (e *Evaluator) Apply(ctx context.Context, t *tree.Tree, id tree.NodeID) bool {
	return e.Evaluate(ctx, t, id, true).Success
}

func (e *Evaluator) evaluate(ctx context.Context, t *tree.Tree, id tree.NodeID, apply, negate bool) Result {
	if t.Empty() {
		return Result{Success: true, Truth: true}
	}

	n := t.Node(id)
	switch n.Kind {
	case tree.KindAnd:
		res := Result{Success: true, Truth: true}
		for _, child := range n.Children {
			sub := e.evaluate(ctx, t, child, apply, negate)
			res.Success = res.Success && sub.Success
			res.Truth = res.Truth && sub.Truth
		}
		return res

	case tree.KindOr:
		res := Result{Success: true, Truth: false}
		for _, child := range n.Children {
			sub := e.evaluate(ctx, t, child, apply, negate)
			res.Success = res.Success && sub.Success
			res.Truth = res.Truth || sub.Truth
		}
		return res

	case tree.KindNot:
		return e.evaluate(ctx, t, n.Children[0], apply, !negate)

	case tree.KindPredicate:
		return e.evaluatePredicate(ctx, n, apply, negate)

	case tree.KindFunction:
		value, found, err := e.store.Function(ctx, state.FactOf(n))
		if err != nil {
			e.log.Error("function read failed", "fact", state.FactOf(n).String(), "error", err)
			return Result{}
		}
		if !found {
			return Result{}
		}
		return Result{Success: true, Truth: false, Value: value}

	case tree.KindExpression:
		return e.evaluateExpression(ctx, t, n, apply, negate)

	case tree.KindFunctionModifier:
		return e.evaluateModifier(ctx, t, n, apply, negate)

	case tree.KindNumber:
		return Result{Success: true, Truth: true, Value: n.Value}

	case tree.KindConstant:
		return Result{Success: true, Truth: n.Name != ""}

	case tree.KindParameter:
		// A bound parameter is a trivially true terminal; an unbound one
		// cannot hold.
		bound := len(n.Params) > 0 && !n.Params[0].Unbound()
		return Result{Success: true, Truth: bound}

	case tree.KindExists:
		return e.evaluateExists(ctx, t, n, apply, negate)
	}

	e.log.Error("unknown node kind", "kind", n.Kind.String(), "expression", t.Render(id))
	return Result{}
}

func (e *Evaluator) evaluatePredicate(ctx context.Context, n *tree.Node, apply, negate bool) Result {
	fact := state.FactOf(n)

	if apply {
		if negate {
			if err := e.store.RemovePredicate(ctx, fact); err != nil {
				e.log.Error("predicate removal failed", "fact", fact.String(), "error", err)
				return Result{}
			}
			return Result{Success: true, Truth: false}
		}
		if err := e.store.AddPredicate(ctx, fact); err != nil {
			e.log.Error("predicate assertion failed", "fact", fact.String(), "error", err)
			return Result{}
		}
		return Result{Success: true, Truth: true}
	}

	exists, err := e.store.ExistsPredicate(ctx, fact)
	if err != nil {
		e.log.Error("predicate query failed", "fact", fact.String(), "error", err)
		return Result{}
	}
	// negate | exists | truth
	//   F    |   F    |   F
	//   F    |   T    |   T
	//   T    |   F    |   T
	//   T    |   T    |   F
	return Result{Success: true, Truth: negate != exists}
}

func (e *Evaluator) evaluateExpression(ctx context.Context, t *tree.Tree, n *tree.Node, apply, negate bool) Result {
	left := e.evaluate(ctx, t, n.Children[0], apply, negate)
	right := e.evaluate(ctx, t, n.Children[1], apply, negate)
	if !left.Success || !right.Success {
		return Result{}
	}

	switch n.Op {
	case tree.OpGE:
		return Result{Success: true, Truth: negate != (left.Value >= right.Value)}
	case tree.OpGT:
		return Result{Success: true, Truth: negate != (left.Value > right.Value)}
	case tree.OpLE:
		return Result{Success: true, Truth: negate != (left.Value <= right.Value)}
	case tree.OpLT:
		return Result{Success: true, Truth: negate != (left.Value < right.Value)}

	case tree.OpEQ:
		// Equality is symbolic between constants and bound parameters and
		// numeric between number literals. Mixed operands are malformed.
		lk := t.Node(n.Children[0])
		rk := t.Node(n.Children[1])
		if symbolic(lk) && symbolic(rk) {
			return Result{Success: true, Truth: negate != (symbolName(lk) == symbolName(rk))}
		}
		if lk.Kind == tree.KindNumber && rk.Kind == tree.KindNumber {
			return Result{Success: true, Truth: negate != (left.Value == right.Value)}
		}
		return Result{}

	case tree.OpMul:
		return Result{Success: true, Value: left.Value * right.Value}
	case tree.OpDiv:
		if math.Abs(right.Value) <= divisionEpsilon {
			return Result{}
		}
		return Result{Success: true, Value: left.Value / right.Value}
	case tree.OpAdd:
		return Result{Success: true, Value: left.Value + right.Value}
	case tree.OpSub:
		return Result{Success: true, Value: left.Value - right.Value}
	}

	e.log.Error("unknown expression operator", "op", string(n.Op), "expression", t.Render(n.ID))
	return Result{}
}

func (e *Evaluator) evaluateModifier(ctx context.Context, t *tree.Tree, n *tree.Node, apply, negate bool) Result {
	left := e.evaluate(ctx, t, n.Children[0], apply, negate)
	right := e.evaluate(ctx, t, n.Children[1], apply, negate)
	if !left.Success || !right.Success {
		return Result{}
	}

	var value float64
	switch n.Op {
	case tree.OpAssign:
		value = right.Value
	case tree.OpIncrease:
		value = left.Value + right.Value
	case tree.OpDecrease:
		value = left.Value - right.Value
	case tree.OpScaleUp:
		value = left.Value * right.Value
	case tree.OpScaleDown:
		if math.Abs(right.Value) <= divisionEpsilon {
			return Result{}
		}
		value = left.Value / right.Value
	default:
		e.log.Error("unknown modifier operator", "op", string(n.Op), "expression", t.Render(n.ID))
		return Result{}
	}

	if apply {
		target := t.Node(n.Children[0])
		fn := state.Function{Name: target.Name, Args: state.FactOf(target).Args, Value: value}
		if err := e.store.UpdateFunction(ctx, fn); err != nil {
			e.log.Error("function update failed", "fact", fn.Ref().String(), "error", err)
			return Result{}
		}
	}
	return Result{Success: true, Truth: false, Value: value}
}

// evaluateExists grounds the quantified variables over the store's object
// universe and evaluates the body once per candidate tuple, returning the
// first witness. No witness means the quantifier fails cleanly; a missing
// body is trivially true.
func (e *Evaluator) evaluateExists(ctx context.Context, t *tree.Tree, n *tree.Node, apply, negate bool) Result {
	if len(n.Children) == 0 {
		return Result{Success: true, Truth: true}
	}

	objects, err := e.store.Objects(ctx)
	if err != nil {
		e.log.Error("object listing failed", "error", err)
		return Result{}
	}

	lists := make([][]string, len(n.Params))
	for i := range lists {
		lists[i] = objects
	}
	tuples := tree.CartesianProduct(lists)
	if e.metrics != nil {
		e.metrics.recordGrounding(ctx, len(tuples))
	}

	id := n.ID
	for _, tuple := range tuples {
		mapping := make(map[string]string, len(n.Params))
		for i, p := range n.Params {
			mapping[p.Name] = tuple[i]
		}
		grounded := tree.Substitute(*t, id, mapping)
		res := e.evaluate(ctx, &grounded, grounded.Node(id).Children[0], apply, negate)
		if res.Truth {
			return res
		}
	}
	return Result{Success: true, Truth: false}
}

func symbolic(n *tree.Node) bool {
	return n.Kind == tree.KindConstant || n.Kind == tree.KindParameter
}

func symbolName(n *tree.Node) string {
	if n.Kind == tree.KindParameter && len(n.Params) > 0 {
		return n.Params[0].Name
	}
	return n.Name
}
