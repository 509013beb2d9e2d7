// Package config provides configuration loading and validation for sampler.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/sampler/pkg/report"
	"github.com/Sumatoshi-tech/sampler/pkg/storage"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers      = errors.New("workers must be positive")
	ErrInvalidDriver       = errors.New("unsupported database driver")
	ErrInvalidMaxOpenConns = errors.New("max open connections must be positive")
	ErrInvalidCacheSize    = errors.New("cache size must be positive")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidFormat       = errors.New("invalid output format")
	ErrNoEntityTypes       = errors.New("no supported entity types")
)

const envPrefix = "SAMPLER"

var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds all configuration for sampler.
type Config struct {
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Site      SiteConfig      `mapstructure:"site"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Output    OutputConfig    `mapstructure:"output"`
}

// SamplerConfig selects what is reported.
type SamplerConfig struct {
	SupportedEntityTypes []string `mapstructure:"supported_entity_types"`
	SupportedFieldTypes  []string `mapstructure:"supported_field_types"`
	Collectors           []string `mapstructure:"collectors"`
	Anonymize            bool     `mapstructure:"anonymize"`
	Workers              int      `mapstructure:"workers"`
}

// DatabaseConfig holds the site database connection.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// SiteConfig points at the content model manifest.
type SiteConfig struct {
	Manifest  string `mapstructure:"manifest"`
	CacheSize int    `mapstructure:"cache_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	Format string   `mapstructure:"format"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds object storage credentials for s3:// targets.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Sink converts the S3 settings for the report writers.
func (s S3Config) Sink() report.S3Config {
	return report.S3Config{
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		UseSSL:    s.UseSSL,
	}
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("sampler")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/sampler")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("sampler.supported_entity_types", DefaultSupportedEntityTypes)
	viperCfg.SetDefault("sampler.supported_field_types", DefaultSupportedFieldTypes)
	viperCfg.SetDefault("sampler.collectors", []string{})
	viperCfg.SetDefault("sampler.anonymize", DefaultAnonymize)
	viperCfg.SetDefault("sampler.workers", DefaultWorkers)

	viperCfg.SetDefault("database.driver", DefaultDatabaseDriver)
	viperCfg.SetDefault("database.dsn", "")
	viperCfg.SetDefault("database.max_open_conns", DefaultDatabaseMaxOpenConns)

	viperCfg.SetDefault("site.manifest", DefaultSiteManifest)
	viperCfg.SetDefault("site.cache_size", DefaultSiteCacheSize)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.s3.endpoint", "")
	viperCfg.SetDefault("output.s3.region", DefaultS3Region)
	viperCfg.SetDefault("output.s3.access_key", "")
	viperCfg.SetDefault("output.s3.secret_key", "")
	viperCfg.SetDefault("output.s3.use_ssl", DefaultS3UseSSL)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if len(config.Sampler.SupportedEntityTypes) == 0 {
		return ErrNoEntityTypes
	}

	if config.Sampler.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Sampler.Workers)
	}

	if !slices.Contains(storage.Drivers(), config.Database.Driver) {
		return fmt.Errorf("%w: %q", ErrInvalidDriver, config.Database.Driver)
	}

	if config.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxOpenConns, config.Database.MaxOpenConns)
	}

	if config.Site.CacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, config.Site.CacheSize)
	}

	if !slices.Contains(logLevels, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	formatErr := report.ValidateFormat(config.Output.Format)
	if formatErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFormat, formatErr)
	}

	return nil
}
