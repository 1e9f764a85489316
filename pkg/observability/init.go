package observability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/Sumatoshi-tech/ordmap"

// Providers are the tracer and meter handed to instrumented code.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Shutdown flushes pending telemetry within Config.FlushTimeout. It must
	// be called before the process exits.
	Shutdown func(ctx context.Context) error
}

// pipeline collects the shutdown hooks of everything Init starts, in start
// order; they run in reverse.
type pipeline struct {
	stops []func(context.Context) error
}

func (p *pipeline) onStop(stop func(context.Context) error) {
	p.stops = append(p.stops, stop)
}

func (p *pipeline) stop(ctx context.Context) error {
	var errs []error

	for _, stop := range slices.Backward(p.stops) {
		errs = append(errs, stop(ctx))
	}

	return errors.Join(errs...)
}

// Init installs the global tracer and meter providers. Without an OTLP
// endpoint spans are dropped; metrics are still collected when readers (for
// example the Prometheus exporter) are passed in.
func Init(ctx context.Context, cfg Config, readers ...sdkmetric.Reader) (Providers, error) {
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(serviceAttributes(cfg.Service)...),
	)
	if err != nil {
		return Providers{}, fmt.Errorf("otel resource: %w", err)
	}

	var pipe pipeline

	tracerProvider, err := startTracing(ctx, cfg, res, &pipe)
	if err != nil {
		return Providers{}, err
	}

	meterProvider, err := startMetrics(ctx, cfg, res, readers, &pipe)
	if err != nil {
		return Providers{}, errors.Join(err, pipe.stop(ctx))
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	flushTimeout := cfg.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}

	return Providers{
		Tracer: tracerProvider.Tracer(scopeName),
		Meter:  meterProvider.Meter(scopeName),
		Shutdown: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, flushTimeout)
			defer cancel()

			return pipe.stop(ctx)
		},
	}, nil
}

func serviceAttributes(info ServiceInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(info.Name)}

	if info.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(info.Version))
	}

	if info.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(info.Environment))
	}

	if info.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(info.Mode)))
	}

	return attrs
}

func startTracing(ctx context.Context, cfg Config, res *resource.Resource, pipe *pipeline) (trace.TracerProvider, error) {
	if !cfg.Export.Enabled() {
		return nooptrace.NewTracerProvider(), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Export.Endpoint)}
	if cfg.Export.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.Export.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Export.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	pipe.onStop(provider.Shutdown)

	return provider, nil
}

func startMetrics(
	ctx context.Context, cfg Config, res *resource.Resource, readers []sdkmetric.Reader, pipe *pipeline,
) (metric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	if cfg.Export.Enabled() {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Export.Endpoint)}
		if cfg.Export.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(cfg.Export.Headers) > 0 {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithHeaders(cfg.Export.Headers))
		}

		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	// Only the resource option: nothing would ever read the measurements.
	if len(opts) == 1 {
		return noopmetric.NewMeterProvider(), nil
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	pipe.onStop(provider.Shutdown)

	return provider, nil
}

// ParseHeaders turns "k1=v1,k2=v2" into a header map. Pairs without "=" and
// pairs with an empty key are ignored; nil is returned when nothing remains.
func ParseHeaders(raw string) map[string]string {
	var headers map[string]string

	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)

		if !found || key == "" {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[key] = strings.TrimSpace(value)
	}

	return headers
}
