package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sampler/pkg/config"
	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/mapping"
	"github.com/Sumatoshi-tech/sampler/pkg/observability"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
	"github.com/Sumatoshi-tech/sampler/pkg/sampler"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

const (
	reportCmdUse   = "report [file]"
	reportCmdShort = "Collect site usage data and write the report"
	reportMaxArgs  = 1

	flagAnonymize   = "anonymize"
	flagFormat      = "format"
	flagCollectors  = "collectors"
	flagEntityTypes = "entity-types"
	flagWorkers     = "workers"
	flagMetricsFile = "metrics-file"
	flagManifest    = "manifest"
	flagDriver      = "driver"
	flagDSN         = "dsn"
)

// ReportCommand holds configuration and dependencies for the report command.
type ReportCommand struct {
	globals *Globals

	anonymize   bool
	format      string
	collectors  []string
	entityTypes []string
	workers     int
	metricsFile string
	manifest    string
	driver      string
	dsn         string
}

// NewReportCommand creates the report command.
func NewReportCommand(globals *Globals) *cobra.Command {
	rc := &ReportCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   reportCmdUse,
		Short: reportCmdShort,
		Long: `Collect bundle, field, role and histogram data from the site and write
the report to stdout, a file, a .lz4 file or an s3://bucket/key target.

Examples:
  sampler report
  sampler report report.json
  sampler report --anonymize=false --format yaml
  sampler report --collectors 'bundle,r*' --entity-types node,media`,
		Args: cobra.MaximumNArgs(reportMaxArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}

			return rc.run(cmd, target)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&rc.anonymize, flagAnonymize, config.DefaultAnonymize, "replace bundle, field and role names with pseudonyms")
	flags.StringVarP(&rc.format, flagFormat, "f", config.DefaultOutputFormat, "output format (json, yaml, text, plot)")
	flags.StringSliceVar(&rc.collectors, flagCollectors, nil, "collector IDs or globs (default: all)")
	flags.StringSliceVar(&rc.entityTypes, flagEntityTypes, nil, "entity types to report (default: configured ones plus user)")
	flags.IntVar(&rc.workers, flagWorkers, config.DefaultWorkers, "entity types collected concurrently")
	flags.StringVar(&rc.metricsFile, flagMetricsFile, "", "write collection metrics as a Prometheus textfile")
	flags.StringVar(&rc.manifest, flagManifest, "", "site manifest (overrides site.manifest)")
	flags.StringVar(&rc.driver, flagDriver, "", "database driver (overrides database.driver)")
	flags.StringVar(&rc.dsn, flagDSN, "", "database DSN (overrides database.dsn)")

	return cmd
}

// applyFlags lets explicitly set flags win over the configuration.
func (rc *ReportCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed(flagAnonymize) {
		cfg.Sampler.Anonymize = rc.anonymize
	}

	if flags.Changed(flagFormat) {
		err := report.ValidateFormat(rc.format)
		if err != nil {
			return err
		}

		cfg.Output.Format = rc.format
	}

	if flags.Changed(flagCollectors) {
		cfg.Sampler.Collectors = rc.collectors
	}

	if flags.Changed(flagWorkers) {
		if rc.workers < 1 {
			return fmt.Errorf("%w: %d", config.ErrInvalidWorkers, rc.workers)
		}

		cfg.Sampler.Workers = rc.workers
	}

	if flags.Changed(flagMetricsFile) {
		cfg.Telemetry.MetricsFile = rc.metricsFile
	}

	if rc.manifest != "" {
		cfg.Site.Manifest = rc.manifest
	}

	if rc.driver != "" {
		cfg.Database.Driver = rc.driver
	}

	if rc.dsn != "" {
		cfg.Database.DSN = rc.dsn
	}

	return nil
}

func (rc *ReportCommand) run(cmd *cobra.Command, target string) error {
	cfg, err := rc.globals.loadConfig()
	if err != nil {
		return err
	}

	err = rc.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	providers, err := rc.globals.telemetry(cfg, cfg.Sampler.Anonymize)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	defer shutdown(ctx, providers, providers.Logger)

	written, err := collectReport(ctx, cfg, providers, rc.entityTypes, target, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if cfg.Telemetry.MetricsFile != "" && providers.Registry != nil {
		err = observability.WriteTextfile(providers.Registry, cfg.Telemetry.MetricsFile)
		if err != nil {
			return err
		}
	}

	if target != "" && target != "-" && !rc.globals.Quiet {
		printStatus(cmd.ErrOrStderr(), color.FgGreen, "Report written to %s\n", written)
	}

	return nil
}

// collectReport opens the site, runs every collector and writes the report.
// It returns a description of where the report went.
func collectReport(
	ctx context.Context,
	cfg *config.Config,
	providers observability.Providers,
	entityTypes []string,
	target string,
	stdout io.Writer,
) (string, error) {
	logger := providers.Logger

	manifest, err := contentmodel.LoadManifest(cfg.Site.Manifest)
	if err != nil {
		return "", err
	}

	model, err := contentmodel.NewCached(manifest, cfg.Site.CacheSize)
	if err != nil {
		return "", err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN,
		storage.WithTracer(providers.Tracer),
		storage.WithMaxOpenConns(cfg.Database.MaxOpenConns),
	)
	if err != nil {
		return "", err
	}

	defer closeStore(ctx, store, logger)

	metrics, err := observability.NewCollectionMetrics(providers.Meter)
	if err != nil {
		return "", err
	}

	settings := sampler.Settings{
		SupportedEntityTypes: cfg.Sampler.SupportedEntityTypes,
		SupportedFieldTypes:  cfg.Sampler.SupportedFieldTypes,
	}

	deps := sampler.NewDeps(model, store, mapping.New(), settings, logger)

	reporter, err := sampler.NewReporter(sampler.DefaultRegistry(), deps, sampler.Options{
		Anonymize:   cfg.Sampler.Anonymize,
		Workers:     cfg.Sampler.Workers,
		EntityTypes: entityTypes,
		Collectors:  cfg.Sampler.Collectors,
		Format:      cfg.Output.Format,
		Tracer:      providers.Tracer,
		Metrics:     metrics,
		Stdout:      stdout,
		S3:          cfg.Output.S3.Sink(),
	}).Collect(ctx)
	if err != nil {
		return "", err
	}

	err = reporter.Output(ctx, target)
	if err != nil {
		return "", err
	}

	label := target
	if label == "" {
		label = "stdout"
	}

	logger.InfoContext(ctx, "report written", "target", label, "entity_types", reporter.Report().Len())

	return label, nil
}

func closeStore(ctx context.Context, store *storage.SQLStore, logger *slog.Logger) {
	err := store.Close()
	if err != nil {
		logger.WarnContext(ctx, "close database", "error", err)
	}
}

func printStatus(w io.Writer, attr color.Attribute, format string, args ...any) {
	_, _ = color.New(attr).Fprintf(w, format, args...)
}
