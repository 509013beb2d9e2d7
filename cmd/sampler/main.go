// Package main provides the entry point for the sampler CLI tool.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sampler/cmd/sampler/commands"
	"github.com/Sumatoshi-tech/sampler/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	err = newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	globals := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "sampler",
		Short: "Sampler - site usage reporter",
		Long: `Sampler reports how a site uses its content model: bundles, fields,
roles and per-entity histograms, optionally with anonymized names.

Commands:
  report         Collect usage data and write the report
  create-config  Rebuild a site manifest from a saved report
  validate       Check a saved report against the schema
  diff           Compare two saved reports
  collectors     List the available collectors`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	globals.Bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(commands.NewReportCommand(globals))
	rootCmd.AddCommand(commands.NewCreateConfigCommand(globals))
	rootCmd.AddCommand(commands.NewValidateCommand(globals))
	rootCmd.AddCommand(commands.NewDiffCommand())
	rootCmd.AddCommand(commands.NewCollectorsCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sampler %s\n", version.String())
		},
	}
}
