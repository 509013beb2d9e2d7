package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

const diffArgCount = 2

// NewDiffCommand creates the diff command.
func NewDiffCommand() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Compare two saved reports",
		Long: `Compare two saved reports line by line after normalizing their layout.

Examples:
  sampler diff last-week.json today.json
  sampler diff --summary a.json b.json.lz4`,
		Args: cobra.ExactArgs(diffArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], summary, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&summary, "summary", "s", false, "print only the number of changed lines")

	return cmd
}

func runDiff(beforePath, afterPath string, summary bool, w io.Writer) error {
	before, err := report.ReadFile(beforePath)
	if err != nil {
		return err
	}

	after, err := report.ReadFile(afterPath)
	if err != nil {
		return err
	}

	result, err := report.Diff(before, after)
	if err != nil {
		return err
	}

	if !result.Changed() {
		fmt.Fprintln(w, "Reports are identical")

		return nil
	}

	if summary {
		fmt.Fprintf(w, "Change Summary:\n  added: %d\n  removed: %d\n", result.Added, result.Removed)

		return nil
	}

	for line := range strings.Lines(result.Text) {
		switch {
		case strings.HasPrefix(line, "+ "):
			printStatus(w, color.FgGreen, "%s", line)
		case strings.HasPrefix(line, "- "):
			printStatus(w, color.FgRed, "%s", line)
		default:
			fmt.Fprint(w, line)
		}
	}

	return nil
}
