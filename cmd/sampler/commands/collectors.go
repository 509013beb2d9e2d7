package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sampler/pkg/sampler"
)

// NewCollectorsCommand creates the collectors command.
func NewCollectorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collectors",
		Short: "List the available collectors",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			listCollectors(sampler.DefaultRegistry(), cmd.OutOrStdout())
		},
	}
}

func listCollectors(reg *sampler.Registry, w io.Writer) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "Kind", "Description"})

	for _, d := range reg.All() {
		tbl.AppendRow(table.Row{d.ID, string(d.Kind), d.Description})
	}

	tbl.Render()
}
