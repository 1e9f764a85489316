// Package observability wires OpenTelemetry tracing and metrics, Prometheus
// exposition and structured logging for the ordmap tools.
package observability

import (
	"log/slog"
	"time"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command such as load.
	ModeCLI AppMode = "cli"
	// ModeBench is the long-running workload driver.
	ModeBench AppMode = "bench"
)

const defaultFlushTimeout = 5 * time.Second

// ServiceInfo describes the running binary. It becomes the OTel resource and
// the fixed attributes of every log record.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
	Mode        AppMode
}

// ExportConfig points the OTLP gRPC exporters at a collector.
type ExportConfig struct {
	// Endpoint is host:port of the collector. Empty disables OTLP export.
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// Enabled reports whether an OTLP collector is configured.
func (ec ExportConfig) Enabled() bool {
	return ec.Endpoint != ""
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level slog.Level
	JSON  bool
}

// Config holds all observability configuration.
type Config struct {
	Service ServiceInfo
	Export  ExportConfig
	Log     LogConfig

	// SampleRatio is the fraction of root spans kept. Values outside (0, 1)
	// keep every span.
	SampleRatio float64

	// FlushTimeout bounds Shutdown.
	FlushTimeout time.Duration
}

// DefaultConfig returns a Config for zero-config startup: no export, info
// logs in text form.
func DefaultConfig() Config {
	return Config{
		Service:      ServiceInfo{Name: "ordmap", Mode: ModeCLI},
		Log:          LogConfig{Level: slog.LevelInfo},
		FlushTimeout: defaultFlushTimeout,
	}
}
