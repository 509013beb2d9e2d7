// Package commands implements CLI command handlers for sampler.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/sampler/pkg/config"
	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/observability"
	"github.com/Sumatoshi-tech/sampler/pkg/version"
)

// Globals are the persistent flags shared by every command.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	LogJSON    bool
}

// Bind registers the persistent flags.
func (g *Globals) Bind(flags *pflag.FlagSet) {
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "config file (default: sampler.yaml in ., ./config, /etc/sampler)")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&g.Quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&g.LogJSON, "log-json", false, "JSON log output")
}

// loadConfig reads the configuration named by the globals.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// telemetry initializes logging, tracing and metrics for one command run.
func (g *Globals) telemetry(cfg *config.Config, anonymize bool) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.Prometheus = cfg.Telemetry.MetricsFile != ""
	obsCfg.RedactTables = anonymize
	obsCfg.LogJSON = cfg.Logging.JSON || g.LogJSON

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	switch {
	case g.Verbose:
		level = slog.LevelDebug
	case g.Quiet:
		level = slog.LevelError
	}

	obsCfg.LogLevel = level

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init telemetry: %w", err)
	}

	return providers, nil
}

// reportingEntityTypes lists the configured entity types plus user, keeping
// only those the site has.
func reportingEntityTypes(cfg *config.Config, model contentmodel.Model) []string {
	wanted := append(slices.Clone(cfg.Sampler.SupportedEntityTypes), contentmodel.EntityTypeUser)

	out := make([]string, 0, len(wanted))

	for _, et := range model.EntityTypes() {
		if slices.Contains(wanted, et.ID) {
			out = append(out, et.ID)
		}
	}

	return out
}

func shutdown(ctx context.Context, providers observability.Providers, logger *slog.Logger) {
	err := providers.Shutdown(ctx)
	if err != nil {
		logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
	}
}
