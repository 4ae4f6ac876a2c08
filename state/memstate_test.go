package state

import (
	"context"
	"reflect"
	"testing"
)

func TestMemStateAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemState()
	p := Predicate{Name: "at", Args: []string{"box1", "depot"}}

	if err := s.AddPredicate(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddPredicate(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.Predicates()); got != 1 {
		t.Fatalf("predicate count = %d, want 1", got)
	}

	exists, err := s.ExistsPredicate(ctx, p)
	if err != nil || !exists {
		t.Fatalf("ExistsPredicate = %v, %v", exists, err)
	}
}

func TestMemStateRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemState()
	p := Predicate{Name: "at", Args: []string{"box1", "depot"}}

	// Removing an absent fact is a no-op.
	if err := s.RemovePredicate(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = s.AddPredicate(ctx, p)
	if err := s.RemovePredicate(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, _ := s.ExistsPredicate(ctx, p)
	if exists {
		t.Fatalf("predicate still present after removal")
	}
}

func TestMemStateFunctions(t *testing.T) {
	ctx := context.Background()
	s := NewMemState()
	ref := Predicate{Name: "battery", Args: []string{"r2d2"}}

	if _, found, _ := s.Function(ctx, ref); found {
		t.Fatalf("unknown fluent reported as found")
	}

	// A snapshot rejects updates to fluents it never saw.
	err := s.UpdateFunction(ctx, Function{Name: "battery", Args: []string{"r2d2"}, Value: 50})
	if err == nil {
		t.Fatalf("expected error updating unknown fluent")
	}

	s.SetFunction(Function{Name: "battery", Args: []string{"r2d2"}, Value: 90})
	if err := s.UpdateFunction(ctx, Function{Name: "battery", Args: []string{"r2d2"}, Value: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, found, err := s.Function(ctx, ref)
	if err != nil || !found || value != 50 {
		t.Fatalf("Function = %v, %v, %v", value, found, err)
	}
}

func TestMemStateObjectsDerivedFromPredicates(t *testing.T) {
	ctx := context.Background()
	s := Snapshot([]Predicate{
		{Name: "at", Args: []string{"box1", "depot"}},
		{Name: "at", Args: []string{"box2", "depot"}},
	}, nil)

	objects, err := s.Objects(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"box1", "depot", "box2"}
	if !reflect.DeepEqual(objects, want) {
		t.Fatalf("Objects = %v, want %v (first-seen order)", objects, want)
	}
}

func TestSnapshotCopiesInput(t *testing.T) {
	preds := []Predicate{{Name: "at", Args: []string{"box1", "depot"}}}
	s := Snapshot(preds, nil)
	preds[0].Name = "mutated"

	if s.Predicates()[0].Name != "at" {
		t.Fatalf("snapshot shares backing slice with caller")
	}
}

func TestPredicateString(t *testing.T) {
	p := Predicate{Name: "at", Args: []string{"box1", "depot"}}
	if got := p.String(); got != "(at box1 depot)" {
		t.Fatalf("String = %q", got)
	}
	if got := (Predicate{Name: "handempty"}).String(); got != "(handempty)" {
		t.Fatalf("String = %q", got)
	}
}
