// Package config loads and validates ordmap configuration from a YAML file
// and ORDMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidOps          = errors.New("workload ops must be positive")
	ErrInvalidKeySpace     = errors.New("workload key space must be positive")
	ErrInvalidRatio        = errors.New("workload ratios must be within [0, 1] and sum to at most 1")
	ErrInvalidVerifyEvery  = errors.New("workload verify_every must not be negative")
	ErrInvalidThreshold    = errors.New("hibernation threshold must not be negative")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("invalid log format")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
)

const envPrefix = "ORDMAP"

// Config holds all ordmap configuration.
type Config struct {
	Workload  WorkloadConfig  `mapstructure:"workload"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Output    OutputConfig    `mapstructure:"output"`
}

// WorkloadConfig drives the bench command. Operations not covered by the
// remove and lookup ratios are inserts.
type WorkloadConfig struct {
	Ops         int     `mapstructure:"ops"`
	KeySpace    int     `mapstructure:"key_space"`
	Seed        uint64  `mapstructure:"seed"`
	RemoveRatio float64 `mapstructure:"remove_ratio"`
	LookupRatio float64 `mapstructure:"lookup_ratio"`
	// VerifyEvery runs a full invariant check after this many operations.
	// Zero checks only at the end.
	VerifyEvery int `mapstructure:"verify_every"`
}

// AllocatorConfig holds node arena settings.
type AllocatorConfig struct {
	HibernationThreshold int `mapstructure:"hibernation_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// OutputConfig selects the report format.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// SlogLevel parses Level.
func (lc LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(lc.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, lc.Level)
	}

	return level, nil
}

// LoadConfig loads configuration from configPath, or from ordmap.yaml in the
// usual locations when configPath is empty. Environment variables override
// the file: workload.ops is read from ORDMAP_WORKLOAD_OPS.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("ordmap")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/ordmap")
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

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("workload.ops", DefaultWorkloadOps)
	viperCfg.SetDefault("workload.key_space", DefaultWorkloadKeySpace)
	viperCfg.SetDefault("workload.seed", DefaultWorkloadSeed)
	viperCfg.SetDefault("workload.remove_ratio", DefaultWorkloadRemoveRatio)
	viperCfg.SetDefault("workload.lookup_ratio", DefaultWorkloadLookupRatio)
	viperCfg.SetDefault("workload.verify_every", DefaultWorkloadVerifyEvery)

	viperCfg.SetDefault("allocator.hibernation_threshold", DefaultHibernationThreshold)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.service_name", DefaultServiceName)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
}

// Validate reports the first invalid setting.
func (config *Config) Validate() error {
	wl := config.Workload

	if wl.Ops <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOps, wl.Ops)
	}

	if wl.KeySpace <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeySpace, wl.KeySpace)
	}

	if wl.RemoveRatio < 0 || wl.LookupRatio < 0 || wl.RemoveRatio+wl.LookupRatio > 1 {
		return fmt.Errorf("%w: remove %.2f, lookup %.2f", ErrInvalidRatio, wl.RemoveRatio, wl.LookupRatio)
	}

	if wl.VerifyEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVerifyEvery, wl.VerifyEvery)
	}

	if config.Allocator.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Allocator.HibernationThreshold)
	}

	if _, err := config.Logging.SlogLevel(); err != nil {
		return err
	}

	switch config.Logging.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	switch config.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, config.Output.Format)
	}

	return nil
}
