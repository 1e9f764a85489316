// Package commands implements the ordmap subcommands.
package commands

import (
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/version"
)

// GlobalFlags are the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	Format     string
	Verbose    bool
	Quiet      bool
	NoColor    bool
}

// Register binds the flags to cmd as persistent flags.
func (g *GlobalFlags) Register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "config file (default ./ordmap.yaml)")
	flags.StringVarP(&g.Format, "format", "f", "", "output format: table, json or yaml")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&g.Quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&g.NoColor, "no-color", false, "disable colored output")
}

// load reads the configuration and applies flag overrides on top of it.
func (g *GlobalFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	switch {
	case g.Verbose:
		cfg.Logging.Level = "debug"
	case g.Quiet:
		cfg.Logging.Level = "error"
	}

	if g.Format != "" {
		cfg.Output.Format = g.Format
	}

	if g.NoColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// observabilityConfig maps the ordmap configuration onto observability settings.
func observabilityConfig(cfg *config.Config, mode observability.AppMode) observability.Config {
	// Validate has already rejected unparsable levels.
	level, _ := cfg.Logging.SlogLevel()

	obsCfg := observability.DefaultConfig()
	obsCfg.Service = observability.ServiceInfo{
		Name:        cfg.Telemetry.ServiceName,
		Version:     version.Version,
		Environment: cfg.Telemetry.Environment,
		Mode:        mode,
	}
	obsCfg.Export = observability.ExportConfig{
		Endpoint: cfg.Telemetry.OTLPEndpoint,
		Headers:  observability.ParseHeaders(cfg.Telemetry.OTLPHeaders),
		Insecure: cfg.Telemetry.OTLPInsecure,
	}
	obsCfg.Log = observability.LogConfig{Level: level, JSON: cfg.Logging.Format == config.FormatJSON}
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio

	return obsCfg
}

func newLogger(cfg *config.Config, mode observability.AppMode, out io.Writer) *slog.Logger {
	return observability.NewLogger(observabilityConfig(cfg, mode), out)
}
