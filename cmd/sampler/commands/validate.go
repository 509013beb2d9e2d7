package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

const validateArgCount = 1

// NewValidateCommand creates the validate command.
func NewValidateCommand(globals *Globals) *cobra.Command {
	var nocolor bool

	cmd := &cobra.Command{
		Use:   "validate <report.json>",
		Short: "Check a saved report against the report schema",
		Long: `Check a saved report (.json or .json.lz4) against the report schema.

Examples:
  sampler validate report.json
  sampler validate report.json.lz4`,
		Args: cobra.ExactArgs(validateArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nocolor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			return runValidate(args[0], globals.Quiet, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(path string, quiet bool, w io.Writer) error {
	data, err := report.ReadFile(path)
	if err != nil {
		return err
	}

	err = report.Validate(data)
	if err == nil {
		if !quiet {
			printStatus(w, color.FgGreen, "Report is valid (%s)\n", path)
		}

		return nil
	}

	if errors.Is(err, report.ErrSchemaViolation) {
		printStatus(w, color.FgRed, "Report validation failed (%s)\n", path)
	}

	return fmt.Errorf("validate %s: %w", path, err)
}
