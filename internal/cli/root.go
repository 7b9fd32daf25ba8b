// Package cli provides the command-line interface for tagwatch.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tagwatch/tagwatch/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tagwatch",
		Short: "Observe Google Tag Manager dataLayer activity on a page",
		Long: `tagwatch opens a page in Chrome and records every dataLayer push,
tag-related console line, and analytics network request it can see
during a configurable observation window.

It captures through three strategies at once:
  - an injected dataLayer.push wrapper that echoes every pushed object
  - the DevTools console event subscription
  - polled browser and performance log buffers

The captured events are printed as a report, and can optionally be
persisted to SQLite or posted to webhook endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add subcommands
	rootCmd.AddCommand(commands.NewObserveCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
