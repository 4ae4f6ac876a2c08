package state

import (
	"context"
	"fmt"
	"sync"
)

// MemState is a thread-safe in-memory snapshot of predicates and fluents.
// It is the backend used for transient what-if evaluation: seed it, run a
// check or an apply pass, and discard it.
//
// Its object universe is derived, not declared: Objects returns every
// distinct name appearing as an argument of a currently held predicate.
type MemState struct {
	mu         sync.RWMutex
	predicates []Predicate
	functions  []Function
}

// NewMemState creates an empty snapshot.
func NewMemState() *MemState {
	return &MemState{}
}

// Snapshot creates a snapshot pre-seeded with the given facts.
func Snapshot(predicates []Predicate, functions []Function) *MemState {
	s := &MemState{
		predicates: make([]Predicate, len(predicates)),
		functions:  make([]Function, len(functions)),
	}
	copy(s.predicates, predicates)
	copy(s.functions, functions)
	return s
}

func (s *MemState) ExistsPredicate(_ context.Context, p Predicate) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfPredicate(p) >= 0, nil
}

func (s *MemState) AddPredicate(_ context.Context, p Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOfPredicate(p) < 0 {
		s.predicates = append(s.predicates, p)
	}
	return nil
}

func (s *MemState) RemovePredicate(_ context.Context, p Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfPredicate(p); i >= 0 {
		s.predicates = append(s.predicates[:i], s.predicates[i+1:]...)
	}
	return nil
}

func (s *MemState) Function(_ context.Context, ref Predicate) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOfFunction(ref); i >= 0 {
		return s.functions[i].Value, true, nil
	}
	return 0, false, nil
}

// UpdateFunction overwrites an existing fluent. A snapshot never invents
// fluents on write; updating an unknown fluent is an error, matching the
// local-mode apply semantics of the evaluator.
func (s *MemState) UpdateFunction(_ context.Context, f Function) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfFunction(f.Ref()); i >= 0 {
		s.functions[i].Value = f.Value
		return nil
	}
	return fmt.Errorf("memstate: unknown function %s", f.Ref())
}

// SetFunction inserts or overwrites a fluent. Used when seeding.
func (s *MemState) SetFunction(f Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfFunction(f.Ref()); i >= 0 {
		s.functions[i].Value = f.Value
		return
	}
	s.functions = append(s.functions, f)
}

func (s *MemState) Objects(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var objects []string
	for _, p := range s.predicates {
		for _, arg := range p.Args {
			if !seen[arg] {
				seen[arg] = true
				objects = append(objects, arg)
			}
		}
	}
	return objects, nil
}

// Predicates returns a copy of the currently held facts.
func (s *MemState) Predicates() []Predicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Predicate, len(s.predicates))
	copy(out, s.predicates)
	return out
}

// Functions returns a copy of the currently held fluents.
func (s *MemState) Functions() []Function {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Function, len(s.functions))
	copy(out, s.functions)
	return out
}

func (s *MemState) indexOfPredicate(p Predicate) int {
	for i := range s.predicates {
		if s.predicates[i].Equal(p) {
			return i
		}
	}
	return -1
}

func (s *MemState) indexOfFunction(ref Predicate) int {
	for i := range s.functions {
		if s.functions[i].Ref().Equal(ref) {
			return i
		}
	}
	return -1
}

// Compile-time interface check.
var _ Store = (*MemState)(nil)
