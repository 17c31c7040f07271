// Package cliutil additionally provides the cobra root command,
// grounded on matzehuels-stacktower/internal/cli/root.go's
// Execute()/SetVersionTemplate/PersistentPreRun logger-wiring pattern.
package cliutil

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commitSHA = "unknown"
	buildDate = "unknown"
)

// SetVersion overrides the build metadata baked in by the linker.
func SetVersion(v, c, d string) {
	version, commitSHA, buildDate = v, c, d
}

// Execute builds and runs the root command against os.Args.
func Execute() error {
	root := RootCommand()
	return root.ExecuteContext(context.Background())
}

// RootCommand assembles the cargo-cooldown CLI: a persistent --verbose
// flag wiring the logger into context (matching root.go's
// PersistentPreRun), plus the run and cache subcommands.
func RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "cargo-cooldown",
		Short: "Guard cargo dependency updates behind a publication cooldown window",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := NewLogger(cmd.OutOrStderr(), verbose)
			cmd.SetContext(WithLogger(cmd.Context(), logger))
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "extra diagnostics")
	root.SetVersionTemplate(fmt.Sprintf("cargo-cooldown %s (commit %s, built %s)\n", version, commitSHA, buildDate))
	root.Version = version

	root.AddCommand(newRunCommand())
	root.AddCommand(newCacheCommand())
	return root
}
