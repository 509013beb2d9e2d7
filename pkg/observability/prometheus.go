package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// newPrometheusReader creates a Prometheus exporter on its own registry so
// repeated initialization never hits duplicate collector registration.
func newPrometheusReader() (sdkmetric.Reader, *prometheus.Registry, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return exporter, registry, nil
}

// WriteTextfile writes the gathered metrics in the node_exporter textfile
// format. The file is replaced atomically.
func WriteTextfile(registry *prometheus.Registry, path string) error {
	err := prometheus.WriteToTextfile(path, registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}

	return nil
}
