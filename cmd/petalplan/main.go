package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalplan/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "petalplan",
	Short: "PetalPlan planning-state CLI",
	Long:  "PetalPlan is a CLI for parsing, checking, and applying planning conditions against a problem state.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("petalplan version %s\n", version))

	rootCmd.AddCommand(cli.NewParseCmd())
	rootCmd.AddCommand(cli.NewCheckCmd())
	rootCmd.AddCommand(cli.NewApplyCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
}
