package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ordmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWorkloadOps, cfg.Workload.Ops)
	assert.Equal(t, config.DefaultWorkloadKeySpace, cfg.Workload.KeySpace)
	assert.Equal(t, uint64(config.DefaultWorkloadSeed), cfg.Workload.Seed)
	assert.InDelta(t, config.DefaultWorkloadRemoveRatio, cfg.Workload.RemoveRatio, 1e-9)
	assert.InDelta(t, config.DefaultWorkloadLookupRatio, cfg.Workload.LookupRatio, 1e-9)
	assert.Equal(t, config.DefaultWorkloadVerifyEvery, cfg.Workload.VerifyEvery)
	assert.Equal(t, config.DefaultHibernationThreshold, cfg.Allocator.HibernationThreshold)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, config.DefaultServiceName, cfg.Telemetry.ServiceName)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, config.DefaultOutputFormat, cfg.Output.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
workload:
  ops: 500
  key_space: 64
  seed: 42
  remove_ratio: 0.5
  lookup_ratio: 0.25
allocator:
  hibernation_threshold: 10
logging:
  level: debug
  format: json
telemetry:
  metrics_addr: ":9090"
  otlp_endpoint: "collector:4317"
  otlp_insecure: true
output:
  format: yaml
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Workload.Ops)
	assert.Equal(t, 64, cfg.Workload.KeySpace)
	assert.Equal(t, uint64(42), cfg.Workload.Seed)
	assert.InDelta(t, 0.5, cfg.Workload.RemoveRatio, 1e-9)
	assert.Equal(t, 10, cfg.Allocator.HibernationThreshold)
	assert.Equal(t, ":9090", cfg.Telemetry.MetricsAddr)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
	assert.Equal(t, config.FormatYAML, cfg.Output.Format)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("ORDMAP_WORKLOAD_OPS", "77")
	t.Setenv("ORDMAP_OUTPUT_FORMAT", "json")

	cfg, err := config.LoadConfig(writeConfig(t, "workload:\n  ops: 5\n"))
	require.NoError(t, err)

	assert.Equal(t, 77, cfg.Workload.Ops)
	assert.Equal(t, config.FormatJSON, cfg.Output.Format)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"zero ops", "workload:\n  ops: 0\n", config.ErrInvalidOps},
		{"negative key space", "workload:\n  key_space: -1\n", config.ErrInvalidKeySpace},
		{"ratios above one", "workload:\n  remove_ratio: 0.8\n  lookup_ratio: 0.5\n", config.ErrInvalidRatio},
		{"negative ratio", "workload:\n  remove_ratio: -0.1\n", config.ErrInvalidRatio},
		{"negative verify", "workload:\n  verify_every: -2\n", config.ErrInvalidVerifyEvery},
		{"negative threshold", "allocator:\n  hibernation_threshold: -5\n", config.ErrInvalidThreshold},
		{"bad level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"bad log format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"bad sample ratio", "telemetry:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
		{"bad output", "output:\n  format: csv\n", config.ErrInvalidOutputFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}
