// Package cli implements the petalplan command line interface.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalplan/cond"
)

// NewParseCmd creates the "parse" subcommand.
func NewParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Parse a condition and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}

	cmd.Flags().Bool("tree", false, "Print the lowered node tree instead of the canonical text")
	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	showTree, _ := cmd.Flags().GetBool("tree")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	c, err := cond.Parse(args[0], nil)
	if err != nil {
		return exitError(exitParse, "parse error: %s", err)
	}

	if !showTree {
		text := "()"
		if c != nil {
			text = c.String()
		}
		if format == "json" {
			return json.NewEncoder(out).Encode(map[string]string{"expression": text})
		}
		fmt.Fprintln(out, text)
		return nil
	}

	t, root := cond.Lower(c, nil)
	if format == "json" {
		return json.NewEncoder(out).Encode(map[string]any{
			"root":  root,
			"nodes": t.Nodes,
		})
	}
	for _, n := range t.Nodes {
		fmt.Fprintf(out, "%3d %-17s %s\n", n.ID, n.Kind, t.Render(n.ID))
	}
	return nil
}
