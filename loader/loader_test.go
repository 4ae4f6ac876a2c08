package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/petal-labs/petalplan/state"
	"github.com/petal-labs/petalplan/tree"
)

const yamlProblem = `name: depot-demo
objects:
  - name: box1
    type: box
  - name: box2
    type: box
  - name: depot
    type: location
init:
  - (at box1 depot)
  - (at box2 depot)
  - (= (weight box1) 3.5)
goal: (and (at box1 depot) (> (weight box1) 3))
`

const jsonProblem = `{
  "name": "depot-demo",
  "objects": [{"name": "box1", "type": "box"}],
  "init": ["(at box1 depot)"],
  "goal": "(at box1 depot)"
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	p, err := Load(writeFile(t, "problem.yaml", yamlProblem))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "depot-demo" {
		t.Fatalf("name = %q", p.Name)
	}
	if len(p.Objects) != 3 || p.Objects[0].Type != "box" {
		t.Fatalf("objects = %+v", p.Objects)
	}
	if len(p.Init) != 3 {
		t.Fatalf("init = %v", p.Init)
	}
}

func TestLoadJSON(t *testing.T) {
	p, err := Load(writeFile(t, "problem.json", jsonProblem))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "depot-demo" || p.Goal != "(at box1 depot)" {
		t.Fatalf("problem = %+v", p)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "missing name", file: "p.yaml", content: "init: []\n"},
		{name: "malformed init", file: "p.yaml", content: "name: x\ninit:\n  - (at box1\n"},
		{name: "malformed goal", file: "p.yaml", content: "name: x\ngoal: (and (at\n"},
		{name: "unbound variable in init", file: "p.yaml", content: "name: x\ninit:\n  - (at ?b depot)\n"},
		{name: "bad json", file: "p.json", content: "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.file, tt.content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseInit(t *testing.T) {
	pred, fn, err := ParseInit("(at box1 depot)")
	if err != nil || fn != nil || pred == nil {
		t.Fatalf("predicate entry = %v, %v, %v", pred, fn, err)
	}
	if pred.Name != "at" || len(pred.Args) != 2 {
		t.Fatalf("predicate = %+v", pred)
	}

	pred, fn, err = ParseInit("(= (weight box1) 3.5)")
	if err != nil || pred != nil || fn == nil {
		t.Fatalf("assignment entry = %v, %v, %v", pred, fn, err)
	}
	if fn.Name != "weight" || fn.Value != 3.5 {
		t.Fatalf("function = %+v", fn)
	}

	if _, _, err := ParseInit("(> (weight box1) 3)"); err == nil {
		t.Fatalf("comparison is not a valid init entry")
	}
	if _, _, err := ParseInit("(and (at box1 depot))"); err == nil {
		t.Fatalf("connective is not a valid init entry")
	}
}

func TestSnapshotOf(t *testing.T) {
	ctx := context.Background()
	p, err := LoadBytes([]byte(yamlProblem), "problem.yaml")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	s, err := SnapshotOf(p)
	if err != nil {
		t.Fatalf("SnapshotOf: %v", err)
	}

	exists, _ := s.ExistsPredicate(ctx, state.Predicate{Name: "at", Args: []string{"box1", "depot"}})
	if !exists {
		t.Fatalf("seeded predicate missing")
	}
	value, found, _ := s.Function(ctx, state.Predicate{Name: "weight", Args: []string{"box1"}})
	if !found || value != 3.5 {
		t.Fatalf("seeded function = %v, %v", value, found)
	}
}

func TestSeedIntoSQLite(t *testing.T) {
	ctx := context.Background()
	p, err := LoadBytes([]byte(yamlProblem), "problem.yaml")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	backend, err := state.NewSQLiteState(state.SQLiteStateConfig{
		DSN: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteState: %v", err)
	}
	defer backend.Close()

	if err := Seed(ctx, backend, p); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	objects, err := backend.Objects(ctx)
	if err != nil || len(objects) != 3 {
		t.Fatalf("objects = %v, %v", objects, err)
	}
	exists, _ := backend.ExistsPredicate(ctx, state.Predicate{Name: "at", Args: []string{"box2", "depot"}})
	if !exists {
		t.Fatalf("seeded predicate missing from sqlite store")
	}
	value, found, _ := backend.Function(ctx, state.Predicate{Name: "weight", Args: []string{"box1"}})
	if !found || value != 3.5 {
		t.Fatalf("seeded function = %v, %v", value, found)
	}
}

func TestGoalTree(t *testing.T) {
	p, err := LoadBytes([]byte(yamlProblem), "problem.yaml")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	tr, root, err := GoalTree(p)
	if err != nil {
		t.Fatalf("GoalTree: %v", err)
	}
	if tr.Node(root).Kind != tree.KindAnd {
		t.Fatalf("goal root = %s", tr.Node(root).Kind)
	}

	empty := &Problem{Name: "x"}
	tr, _, err = GoalTree(empty)
	if err != nil || !tr.Empty() {
		t.Fatalf("goalless problem should lower to an empty tree: %v", err)
	}
}
