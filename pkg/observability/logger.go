package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// ContextHandler decorates records with the trace and span ids of the span
// carried by the context, if any.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next. The service attributes are bound before any
// group is opened so they always land at the top level.
func NewContextHandler(next slog.Handler, info ServiceInfo) *ContextHandler {
	fixed := make([]slog.Attr, 0, 3)
	fixed = append(fixed, slog.String("service", info.Name), slog.String("mode", string(info.Mode)))

	if info.Environment != "" {
		fixed = append(fixed, slog.String("env", info.Environment))
	}

	return &ContextHandler{next: next.WithAttrs(fixed)}
}

// Enabled implements [slog.Handler].
func (ch *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return ch.next.Enabled(ctx, level)
}

// Handle implements [slog.Handler].
func (ch *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		record.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}

	if spanCtx.HasSpanID() {
		record.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	return ch.next.Handle(ctx, record) //nolint:wrapcheck // handler chain
}

// WithAttrs implements [slog.Handler].
func (ch *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: ch.next.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (ch *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: ch.next.WithGroup(name)}
}

// NewLogger returns a logger writing to out in the format and at the level
// of cfg.Log.
func NewLogger(cfg Config, out io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.Log.Level}

	base := slog.Handler(slog.NewTextHandler(out, handlerOpts))
	if cfg.Log.JSON {
		base = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(NewContextHandler(base, cfg.Service))
}
