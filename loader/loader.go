// Package loader reads planning problem files in JSON and YAML formats: a
// problem name, a typed object universe, the initial facts and fluent
// values, and an optional goal condition.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/petalplan/cond"
	"github.com/petal-labs/petalplan/state"
	"github.com/petal-labs/petalplan/tree"
)

// Object is one declared member of the problem's object universe.
type Object struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Problem is a problem definition file. Init entries are condition text:
// "(at box1 depot)" asserts a predicate, "(= (weight box1) 3)" assigns a
// fluent.
type Problem struct {
	Name    string   `json:"name" yaml:"name"`
	Objects []Object `json:"objects,omitempty" yaml:"objects,omitempty"`
	Init    []string `json:"init,omitempty" yaml:"init,omitempty"`
	Goal    string   `json:"goal,omitempty" yaml:"goal,omitempty"`
}

// Load reads and parses a problem file. The format is chosen by extension:
// .yaml and .yml parse as YAML, everything else as JSON.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes parses problem file content. The path is only used for format
// detection and error messages.
func LoadBytes(data []byte, path string) (*Problem, error) {
	var p Problem
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	}
	if p.Name == "" {
		return nil, fmt.Errorf("problem file %s: name is required", path)
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// validate parses every init entry and the goal so malformed input fails at
// load time rather than at seed or evaluation time.
func validate(p *Problem) error {
	for _, entry := range p.Init {
		if _, _, err := ParseInit(entry); err != nil {
			return fmt.Errorf("init entry %q: %w", entry, err)
		}
	}
	if p.Goal != "" {
		if _, err := cond.Parse(p.Goal, nil); err != nil {
			return fmt.Errorf("goal %q: %w", p.Goal, err)
		}
	}
	return nil
}

// ParseInit parses one init entry as either a ground predicate or a fluent
// assignment. Exactly one of the two returns is non-nil.
func ParseInit(entry string) (*state.Predicate, *state.Function, error) {
	c, err := cond.Parse(entry, nil)
	if err != nil {
		return nil, nil, err
	}
	switch v := c.(type) {
	case *cond.Atom:
		args := make([]string, len(v.Args))
		for i, arg := range v.Args {
			if arg.Slot >= 0 {
				return nil, nil, fmt.Errorf("init predicate argument %q is not a concrete object", arg.Name)
			}
			args[i] = arg.Name
		}
		return &state.Predicate{Name: v.Name, Args: args}, nil, nil

	case *cond.Expr:
		a, err := cond.ParseAssignment(entry)
		if err != nil {
			return nil, nil, err
		}
		return nil, &state.Function{Name: a.Name, Args: a.Args, Value: a.Value}, nil

	default:
		return nil, nil, fmt.Errorf("init entry must be a predicate or a fluent assignment")
	}
}

// ObjectWriter is implemented by stores with a declared object registry.
type ObjectWriter interface {
	AddObject(ctx context.Context, name, typ string) error
}

// Seed writes the problem's objects and initial facts into a store. Objects
// are only written when the store declares its universe explicitly; snapshot
// stores derive theirs from predicate arguments.
func Seed(ctx context.Context, store state.Store, p *Problem) error {
	if ow, ok := store.(ObjectWriter); ok {
		for _, obj := range p.Objects {
			if err := ow.AddObject(ctx, obj.Name, obj.Type); err != nil {
				return fmt.Errorf("seeding object %s: %w", obj.Name, err)
			}
		}
	}
	for _, entry := range p.Init {
		pred, fn, err := ParseInit(entry)
		if err != nil {
			return fmt.Errorf("init entry %q: %w", entry, err)
		}
		if pred != nil {
			if err := store.AddPredicate(ctx, *pred); err != nil {
				return fmt.Errorf("seeding predicate %s: %w", pred, err)
			}
			continue
		}
		if err := store.UpdateFunction(ctx, *fn); err != nil {
			return fmt.Errorf("seeding function %s: %w", fn.Ref(), err)
		}
	}
	return nil
}

// SnapshotOf builds an in-memory snapshot of the problem's initial state.
func SnapshotOf(p *Problem) (*state.MemState, error) {
	var predicates []state.Predicate
	var functions []state.Function
	for _, entry := range p.Init {
		pred, fn, err := ParseInit(entry)
		if err != nil {
			return nil, fmt.Errorf("init entry %q: %w", entry, err)
		}
		if pred != nil {
			predicates = append(predicates, *pred)
		} else {
			functions = append(functions, *fn)
		}
	}
	return state.Snapshot(predicates, functions), nil
}

// GoalTree parses and lowers the problem's goal into a condition tree. A
// problem without a goal yields an empty tree, which evaluates as trivially
// true.
func GoalTree(p *Problem) (tree.Tree, tree.NodeID, error) {
	if p.Goal == "" {
		return tree.Tree{}, 0, nil
	}
	c, err := cond.Parse(p.Goal, nil)
	if err != nil {
		return tree.Tree{}, 0, fmt.Errorf("goal %q: %w", p.Goal, err)
	}
	t, root := cond.Lower(c, nil)
	return t, root, nil
}
