package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sampler/pkg/configcreator"
	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
)

const (
	createConfigCmdUse   = "create-config <report.json>"
	createConfigCmdShort = "Rewrite the site manifest with the bundles of a saved report"
	createConfigArgCount = 1
	createConfigFilePerm = 0o644

	flagOut = "out"
)

// NewCreateConfigCommand creates the create-config command.
func NewCreateConfigCommand(globals *Globals) *cobra.Command {
	var out, manifestPath string

	cmd := &cobra.Command{
		Use:   createConfigCmdUse,
		Short: createConfigCmdShort,
		Long: `Read a saved report and rewrite the site manifest so every reported
entity type has exactly the report's bundles. Bundle IDs are used as labels.

Examples:
  sampler create-config report.json
  sampler create-config report.json --out test-site.yaml`,
		Args: cobra.ExactArgs(createConfigArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateConfig(globals, args[0], manifestPath, out, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&out, flagOut, "o", "", "manifest output file (default: stdout)")
	cmd.Flags().StringVar(&manifestPath, flagManifest, "", "site manifest (overrides site.manifest)")

	return cmd
}

func runCreateConfig(globals *Globals, reportPath, manifestPath, out string, stdout, stderr io.Writer) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}

	if manifestPath != "" {
		cfg.Site.Manifest = manifestPath
	}

	providers, err := globals.telemetry(cfg, false)
	if err != nil {
		return err
	}

	manifest, err := contentmodel.LoadManifest(cfg.Site.Manifest)
	if err != nil {
		return err
	}

	creator := configcreator.New(manifest, reportingEntityTypes(cfg, manifest),
		configcreator.WithLogger(providers.Logger))

	if out == "" {
		return creator.Run(reportPath, stdout)
	}

	f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, createConfigFilePerm)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}

	err = creator.Run(reportPath, f)

	closeErr := f.Close()
	if err != nil {
		return err
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", out, closeErr)
	}

	if !globals.Quiet {
		printStatus(stderr, color.FgGreen, "Manifest written to %s\n", out)
	}

	return nil
}
