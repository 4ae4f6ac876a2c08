// Package state provides the world-state capability consumed by the
// evaluator: predicate existence and mutation, numeric fluent read and
// update, and the object universe used for quantifier grounding. The
// capability has three implementations (a transient in-memory snapshot, a
// durable SQLite store, and an HTTP client for a remote problem service)
// and the evaluator is identical over all of them.
package state

import (
	"context"
	"strings"

	"github.com/petal-labs/petalplan/tree"
)

// Predicate is a ground fact: a name plus an ordered list of concrete
// object names. It doubles as the identity of a numeric fluent.
type Predicate struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// Function is a numeric fluent: a predicate-shaped identity plus a value.
type Function struct {
	Name  string   `json:"name"`
	Args  []string `json:"args,omitempty"`
	Value float64  `json:"value"`
}

// Ref returns the function's identity.
func (f Function) Ref() Predicate {
	return Predicate{Name: f.Name, Args: f.Args}
}

// Equal reports structural equality: same name, same ordered arguments.
func (p Predicate) Equal(other Predicate) bool {
	if p.Name != other.Name || len(p.Args) != len(other.Args) {
		return false
	}
	for i := range p.Args {
		if p.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

// String returns the bracketed form, e.g. "(at box1 depot)".
func (p Predicate) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(p.Name)
	for _, arg := range p.Args {
		sb.WriteString(" ")
		sb.WriteString(arg)
	}
	sb.WriteString(")")
	return sb.String()
}

// FactOf extracts the fact identity from a predicate or function node.
func FactOf(n *tree.Node) Predicate {
	args := make([]string, len(n.Params))
	for i, p := range n.Params {
		args[i] = p.Name
	}
	return Predicate{Name: n.Name, Args: args}
}

// Store is the state-backend capability. Implementations may perform
// blocking I/O per call; callers needing atomic check-then-apply semantics
// across several facts must serialize at a higher layer.
type Store interface {
	// ExistsPredicate reports whether the fact holds.
	ExistsPredicate(ctx context.Context, p Predicate) (bool, error)

	// AddPredicate asserts the fact. Adding an already-held fact is a no-op.
	AddPredicate(ctx context.Context, p Predicate) error

	// RemovePredicate retracts the fact. Removing an absent fact is a no-op.
	RemovePredicate(ctx context.Context, p Predicate) error

	// Function reads the fluent's current value. found is false when the
	// fluent is unknown; that is an evaluation failure for the caller, not
	// a transport error.
	Function(ctx context.Context, ref Predicate) (value float64, found bool, err error)

	// UpdateFunction writes the fluent's value. Snapshot implementations
	// reject unknown fluents; durable implementations upsert.
	UpdateFunction(ctx context.Context, f Function) error

	// Objects returns the candidate object names for quantifier grounding.
	Objects(ctx context.Context) ([]string, error)
}
