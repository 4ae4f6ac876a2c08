package tree

import (
	"reflect"
	"testing"
)

func TestAddAssignsSequentialIDs(t *testing.T) {
	var tr Tree
	a := tr.Add(Node{Kind: KindPredicate, Name: "at"})
	b := tr.Add(Node{Kind: KindPredicate, Name: "near"})
	if a != 0 || b != 1 {
		t.Fatalf("expected IDs 0 and 1, got %d and %d", a, b)
	}
	if tr.Node(a).Name != "at" || tr.Node(b).Name != "near" {
		t.Fatalf("nodes stored out of order")
	}
}

func TestEmpty(t *testing.T) {
	var tr Tree
	if !tr.Empty() {
		t.Fatalf("new tree should be empty")
	}
	tr.Add(Node{Kind: KindNumber, Value: 1})
	if tr.Empty() {
		t.Fatalf("tree with a node should not be empty")
	}
}

func TestCloneIsDeep(t *testing.T) {
	var tr Tree
	child := tr.Add(Node{Kind: KindPredicate, Name: "at", Params: []Param{{Name: "box1"}}})
	tr.Add(Node{Kind: KindNot, Children: []NodeID{child}})

	clone := tr.Clone()
	clone.Nodes[0].Params[0].Name = "box2"
	clone.Nodes[1].Children[0] = 99

	if tr.Nodes[0].Params[0].Name != "box1" {
		t.Fatalf("clone shares params with original")
	}
	if tr.Nodes[1].Children[0] != child {
		t.Fatalf("clone shares children with original")
	}
}

func TestSameFact(t *testing.T) {
	tests := []struct {
		name string
		a, b Node
		want bool
	}{
		{
			name: "equal",
			a:    Node{Name: "at", Params: []Param{{Name: "box1"}, {Name: "depot"}}},
			b:    Node{Name: "at", Params: []Param{{Name: "box1"}, {Name: "depot"}}},
			want: true,
		},
		{
			name: "different name",
			a:    Node{Name: "at", Params: []Param{{Name: "box1"}}},
			b:    Node{Name: "near", Params: []Param{{Name: "box1"}}},
			want: false,
		},
		{
			name: "different arity",
			a:    Node{Name: "at", Params: []Param{{Name: "box1"}}},
			b:    Node{Name: "at", Params: []Param{{Name: "box1"}, {Name: "depot"}}},
			want: false,
		},
		{
			name: "argument order matters",
			a:    Node{Name: "at", Params: []Param{{Name: "box1"}, {Name: "depot"}}},
			b:    Node{Name: "at", Params: []Param{{Name: "depot"}, {Name: "box1"}}},
			want: false,
		},
		{
			name: "types ignored",
			a:    Node{Name: "at", Params: []Param{{Name: "box1", Type: "box"}}},
			b:    Node{Name: "at", Params: []Param{{Name: "box1"}}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameFact(tt.a, tt.b); got != tt.want {
				t.Fatalf("SameFact = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParamUnbound(t *testing.T) {
	if (Param{Name: "box1"}).Unbound() {
		t.Fatalf("concrete name should be bound")
	}
	if !(Param{Name: "?0"}).Unbound() {
		t.Fatalf("placeholder should be unbound")
	}
	if (Param{}).Unbound() {
		t.Fatalf("empty name should not count as unbound")
	}
}

func TestRender(t *testing.T) {
	var tr Tree
	pred := tr.Add(Node{Kind: KindPredicate, Name: "at", Params: []Param{{Name: "box1"}, {Name: "depot"}}})
	neg := tr.Add(Node{Kind: KindNot, Children: []NodeID{pred}})
	num := tr.Add(Node{Kind: KindNumber, Value: 3.5})
	fn := tr.Add(Node{Kind: KindFunction, Name: "weight", Params: []Param{{Name: "box1"}}})
	cmp := tr.Add(Node{Kind: KindExpression, Op: OpGT, Children: []NodeID{fn, num}})
	root := tr.Add(Node{Kind: KindAnd, Children: []NodeID{neg, cmp}})

	want := "(and (not (at box1 depot)) (> (weight box1) 3.5))"
	if got := tr.Render(root); got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderExists(t *testing.T) {
	var tr Tree
	ex := tr.Add(Node{Kind: KindExists, Params: []Param{{Name: "?0", Type: "box"}}})
	body := tr.Add(Node{Kind: KindPredicate, Name: "at", Params: []Param{{Name: "?0"}, {Name: "depot"}}})
	tr.Node(ex).Children = append(tr.Node(ex).Children, body)

	want := "(exists (?0 - box) (at ?0 depot))"
	if got := tr.Render(ex); got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestSubstituteDoesNotMutateOriginal(t *testing.T) {
	var tr Tree
	ex := tr.Add(Node{Kind: KindExists, Params: []Param{{Name: "?0"}}})
	body := tr.Add(Node{Kind: KindPredicate, Name: "at", Params: []Param{{Name: "?0"}, {Name: "depot"}}})
	tr.Node(ex).Children = append(tr.Node(ex).Children, body)

	out := Substitute(tr, ex, map[string]string{"?0": "box1"})

	if out.Nodes[body].Params[0].Name != "box1" {
		t.Fatalf("substitution did not reach the body: %+v", out.Nodes[body].Params)
	}
	if out.Nodes[ex].Params[0].Name != "box1" {
		t.Fatalf("substitution did not reach the quantifier params")
	}
	if tr.Nodes[body].Params[0].Name != "?0" {
		t.Fatalf("original tree was mutated")
	}
}

func TestSubstituteOnlyTouchesSubtree(t *testing.T) {
	var tr Tree
	other := tr.Add(Node{Kind: KindPredicate, Name: "near", Params: []Param{{Name: "?0"}}})
	target := tr.Add(Node{Kind: KindPredicate, Name: "at", Params: []Param{{Name: "?0"}}})

	out := Substitute(tr, target, map[string]string{"?0": "box1"})

	if out.Nodes[target].Params[0].Name != "box1" {
		t.Fatalf("target subtree not substituted")
	}
	if out.Nodes[other].Params[0].Name != "?0" {
		t.Fatalf("substitution leaked outside the subtree")
	}
}

func TestCartesianProduct(t *testing.T) {
	got := CartesianProduct([][]string{
		{"a", "b"},
		{"x", "y", "z"},
	})
	want := [][]string{
		{"a", "x"}, {"a", "y"}, {"a", "z"},
		{"b", "x"}, {"b", "y"}, {"b", "z"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CartesianProduct = %v, want %v", got, want)
	}
}

func TestCartesianProductEmptyInput(t *testing.T) {
	got := CartesianProduct(nil)
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("empty input should yield one empty tuple, got %v", got)
	}
}

func TestCartesianProductEmptyList(t *testing.T) {
	got := CartesianProduct([][]string{{"a", "b"}, {}})
	if len(got) != 0 {
		t.Fatalf("a product with an empty list should be empty, got %v", got)
	}
}
