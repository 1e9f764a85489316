package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

const (
	benchCmdUse   = "bench"
	benchCmdShort = "Run a randomized workload checked against a map oracle"
	benchCmdLong  = `Bench replays a seeded random mix of insert, remove, lookup, remove-min and
remove-max operations against the tree and a plain Go map, failing on the
first disagreement. Invariants are checked every --verify-every operations
and at the end, after which the arena is hibernated and booted once.

With --metrics-addr the tree's metrics stay available on /metrics until the
process is interrupted.`

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type benchOptions struct {
	workload    config.WorkloadConfig
	threshold   int
	format      string
	plotPath    string
	metricsAddr string
}

// NewBenchCommand creates the bench subcommand.
func NewBenchCommand(global *GlobalFlags) *cobra.Command {
	var (
		flagOps, flagKeySpace, flagVerify int
		flagSeed                          uint64
		flagRemove, flagLookup            float64
		opts                              benchOptions
	)

	cmd := &cobra.Command{
		Use:   benchCmdUse,
		Short: benchCmdShort,
		Long:  benchCmdLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			overrideInt(flags.Changed("ops"), &cfg.Workload.Ops, flagOps)
			overrideInt(flags.Changed("key-space"), &cfg.Workload.KeySpace, flagKeySpace)
			overrideInt(flags.Changed("verify-every"), &cfg.Workload.VerifyEvery, flagVerify)

			if flags.Changed("seed") {
				cfg.Workload.Seed = flagSeed
			}

			if flags.Changed("remove-ratio") {
				cfg.Workload.RemoveRatio = flagRemove
			}

			if flags.Changed("lookup-ratio") {
				cfg.Workload.LookupRatio = flagLookup
			}

			if flags.Changed("metrics-addr") {
				cfg.Telemetry.MetricsAddr = opts.metricsAddr
			}

			err = cfg.Validate()
			if err != nil {
				return err
			}

			opts.workload = cfg.Workload
			opts.threshold = cfg.Allocator.HibernationThreshold
			opts.format = cfg.Output.Format
			opts.metricsAddr = cfg.Telemetry.MetricsAddr

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runBench(ctx, cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&flagOps, "ops", config.DefaultWorkloadOps, "number of operations")
	flags.IntVar(&flagKeySpace, "key-space", config.DefaultWorkloadKeySpace, "keys are drawn from [0, key-space)")
	flags.Uint64Var(&flagSeed, "seed", config.DefaultWorkloadSeed, "random seed")
	flags.Float64Var(&flagRemove, "remove-ratio", config.DefaultWorkloadRemoveRatio, "share of remove operations")
	flags.Float64Var(&flagLookup, "lookup-ratio", config.DefaultWorkloadLookupRatio, "share of lookup operations")
	flags.IntVar(&flagVerify, "verify-every", config.DefaultWorkloadVerifyEvery, "check invariants every N operations (0: only at the end)")
	flags.StringVar(&opts.plotPath, "plot", "", "write an HTML height chart to this file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address until interrupted")

	return cmd
}

func overrideInt(changed bool, dst *int, value int) {
	if changed {
		*dst = value
	}
}

func runBench(ctx context.Context, cfg *config.Config, opts benchOptions, out, errOut io.Writer) error {
	obsCfg := observabilityConfig(cfg, observability.ModeBench)

	var (
		prom    *observability.PrometheusExporter
		readers []sdkmetric.Reader
	)

	if opts.metricsAddr != "" {
		var err error

		prom, err = observability.NewPrometheusExporter()
		if err != nil {
			return err
		}

		readers = append(readers, prom.Reader)
	}

	providers, err := observability.Init(ctx, obsCfg, readers...)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer reportCleanup(errOut, "telemetry shutdown", func() error {
		return providers.Shutdown(context.WithoutCancel(ctx))
	})

	logger := observability.NewLogger(obsCfg, errOut)

	tree := rbtree.New(rbtree.WithLogger[int, int](logger))
	tree.Allocator().HibernationThreshold = opts.threshold

	metrics, err := observability.NewTreeMetrics(providers.Meter, "bench", tree)
	if err != nil {
		return err
	}

	defer reportCleanup(errOut, "tree metrics close", metrics.Close)

	var server *http.Server

	if prom != nil {
		server, err = startMetricsServer(opts.metricsAddr, prom.Handler(), logger)
		if err != nil {
			return err
		}
	}

	wl := newWorkload(opts.workload, tree, providers.Tracer, logger)

	result, err := wl.run(ctx)
	if err != nil {
		printVerdict(errOut, err)

		return err
	}

	result.Hibernation, err = wl.hibernate(ctx)
	if err != nil {
		printVerdict(errOut, err)

		return err
	}

	if opts.plotPath != "" {
		err = writePlot(opts.plotPath, result.Samples)
		if err != nil {
			return err
		}

		logger.Info("height chart written", "path", opts.plotPath)
	}

	err = writeBenchReport(out, errOut, result, opts.format)
	if err != nil {
		return err
	}

	if server != nil {
		logger.Info("serving metrics until interrupted", "addr", opts.metricsAddr)
		<-ctx.Done()

		return stopMetricsServer(server)
	}

	return nil
}

// reportCleanup runs a deferred cleanup and prints its error, if any, to
// errOut. The command result is already decided by then.
func reportCleanup(errOut io.Writer, what string, cleanup func() error) {
	err := cleanup()
	if err != nil {
		fmt.Fprintf(errOut, "%s failed: %v\n", what, err)
	}
}

func startMetricsServer(addr string, handler http.Handler, logger *slog.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", serveErr)
		}
	}()

	return server, nil
}

func stopMetricsServer(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("stop metrics server: %w", err)
	}

	return nil
}

func writeBenchReport(out, errOut io.Writer, result *workloadResult, format string) error {
	if format != config.FormatTable {
		return writeStructured(out, result, format)
	}

	stats := result.Stats
	opsPerSec := float64(result.Ops) / max(result.Duration.Seconds(), 1e-9)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rows := [][]any{
		{"operations", humanize.Comma(int64(result.Ops))},
		{"seed", result.Seed},
		{"duration", result.Duration.Round(time.Microsecond).String()},
		{"throughput", humanize.CommafWithDigits(opsPerSec, 0) + " ops/s"},
		{"inserts", humanize.Comma(stats.Inserts)},
		{"removes", humanize.Comma(stats.Removes)},
		{"lookups", humanize.Comma(stats.Lookups)},
		{"cache hit rate", humanize.FtoaWithDigits(stats.CacheHitRate()*100, 2) + "%"},
		{"rotations", humanize.Comma(stats.Rotations)},
		{"final entries", humanize.Comma(int64(stats.Len))},
		{"final height", result.FinalHeight},
		{"verifications", result.Verifications},
		{"heap in use", humanize.Bytes(mem.HeapInuse)},
	}

	if hib := result.Hibernation; hib != nil {
		if hib.Skipped {
			rows = append(rows, []any{"hibernation", "skipped (below threshold)"})
		} else {
			rows = append(rows, []any{"hibernation", fmt.Sprintf("%s slots, freeze %s, thaw %s",
				humanize.Comma(int64(hib.Slots)), hib.Freeze.Round(time.Microsecond), hib.Thaw.Round(time.Microsecond))})
		}
	}

	renderTable(out, []any{"METRIC", "VALUE"}, rows, "")
	printVerdict(errOut, nil)

	return nil
}
