package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalplan/cond"
	"github.com/petal-labs/petalplan/eval"
	"github.com/petal-labs/petalplan/loader"
	"github.com/petal-labs/petalplan/state"
)

// NewCheckCmd creates the "check" subcommand.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [expression]",
		Short: "Check whether a condition holds",
		Long: "Check evaluates a condition read-only against a problem file snapshot " +
			"or a running petalplan server. With no expression, the problem's goal is checked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args, false)
		},
	}
	addEvaluateFlags(cmd)
	return cmd
}

// NewApplyCmd creates the "apply" subcommand.
func NewApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <expression>",
		Short: "Apply a condition's effects to the state",
		Long: "Apply evaluates a condition and commits its predicate and fluent effects, " +
			"against a problem file snapshot or a running petalplan server.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args, true)
		},
	}
	addEvaluateFlags(cmd)
	return cmd
}

func addEvaluateFlags(cmd *cobra.Command) {
	cmd.Flags().String("problem", "", "Problem file to evaluate against (snapshot mode)")
	cmd.Flags().String("server", "", "Base URL of a running petalplan server (remote mode)")
	cmd.Flags().Bool("show-state", false, "Print the resulting state (snapshot mode only)")
}

func runEvaluate(cmd *cobra.Command, args []string, apply bool) error {
	problemPath, _ := cmd.Flags().GetString("problem")
	serverURL, _ := cmd.Flags().GetString("server")
	showState, _ := cmd.Flags().GetBool("show-state")
	out := cmd.OutOrStdout()

	if (problemPath == "") == (serverURL == "") {
		return exitError(exitParse, "exactly one of --problem and --server is required")
	}

	var store state.Store
	var snapshot *state.MemState
	var goal string

	if problemPath != "" {
		p, err := loader.Load(problemPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return exitError(exitFileNotFound, "file not found: %s", problemPath)
			}
			return exitError(exitParse, "loading problem: %s", err)
		}
		snapshot, err = loader.SnapshotOf(p)
		if err != nil {
			return exitError(exitParse, "building snapshot: %s", err)
		}
		store = snapshot
		goal = p.Goal
	} else {
		store = state.NewRemoteState(state.RemoteStateConfig{BaseURL: serverURL})
	}

	expression := goal
	if len(args) == 1 {
		expression = args[0]
	}
	if expression == "" {
		return exitError(exitParse, "no expression given and the problem has no goal")
	}

	c, err := cond.Parse(expression, nil)
	if err != nil {
		return exitError(exitParse, "parse error: %s", err)
	}
	t, root := cond.Lower(c, nil)

	evaluator := eval.NewEvaluator(eval.Config{Store: store})
	res := evaluator.Evaluate(cmd.Context(), &t, root, apply)

	fmt.Fprintf(out, "success=%t truth=%t value=%g\n", res.Success, res.Truth, res.Value)

	if showState && snapshot != nil {
		printSnapshot(out, snapshot)
	}

	if apply {
		if !res.Success {
			return exitError(exitRuntime, "apply failed")
		}
		return nil
	}
	if !res.Success {
		return exitError(exitRuntime, "evaluation failed")
	}
	if !res.Truth {
		return exitError(exitNotSatisfied, "condition does not hold")
	}
	return nil
}

func printSnapshot(out io.Writer, s *state.MemState) {
	for _, p := range s.Predicates() {
		fmt.Fprintln(out, p.String())
	}
	for _, f := range s.Functions() {
		fmt.Fprintf(out, "(= %s %g)\n", f.Ref(), f.Value)
	}
}
