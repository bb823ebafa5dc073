// Package main is the entry point for the ardent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/syssam/ardent/cmd/ardent/commands"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &commands.Options{}
	rootCmd := &cobra.Command{
		Use:           "ardent",
		Short:         "Inspect and edit configured table models",
		Long:          "ardent runs model operations against the connections and models of a YAML configuration file.",
		Version:       fmt.Sprintf("%s (commit: %s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.Bind(rootCmd)

	rootCmd.AddCommand(commands.NewColumnsCommand(opts))
	rootCmd.AddCommand(commands.NewShowCommand(opts))
	rootCmd.AddCommand(commands.NewFindCommand(opts))
	rootCmd.AddCommand(commands.NewCreateCommand(opts))
	rootCmd.AddCommand(commands.NewSaveCommand(opts))
	rootCmd.AddCommand(commands.NewDeleteCommand(opts))
	rootCmd.AddCommand(commands.NewRestoreCommand(opts))

	return rootCmd.Execute()
}
