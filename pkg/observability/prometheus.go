package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
)

// PrometheusExporter bridges OTel instruments to a Prometheus scrape
// endpoint. Pass Reader to Init so the meter provider feeds it.
type PrometheusExporter struct {
	Reader   *promexporter.Exporter
	registry *prometheus.Registry
}

// NewPrometheusExporter creates an exporter with its own registry, so
// repeated calls never collide on collector registration. Go runtime and
// process collectors are registered alongside the OTel bridge.
func NewPrometheusExporter() (*PrometheusExporter, error) {
	registry := prometheus.NewRegistry()

	err := registry.Register(collectors.NewGoCollector())
	if err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	err = registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusExporter{Reader: exporter, registry: registry}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (pe *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(pe.registry, promhttp.HandlerOpts{})
}
