// Package observability provides OpenTelemetry tracing, collection metrics
// and structured logging for sampler.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	defaultServiceName        = "sampler"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// Prometheus attaches a Prometheus registry reader to the meter provider
	// so collection metrics can be written as a textfile.
	Prometheus bool

	// RedactTables hides table names on exported spans. Field tables are
	// named after fields, so anonymized runs set this.
	RedactTables bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// LogOutput receives log records; nil means stderr.
	LogOutput io.Writer

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLevel converts a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.ToUpper(name)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", name, err)
	}

	return level, nil
}
