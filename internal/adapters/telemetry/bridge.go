package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/forge/internal/core/ports"
)

// LogBridge implements sdktrace.SpanProcessor by reporting span completions
// to the logger at debug level. It is how `--trace` surfaces per-node timing
// without an external collector.
type LogBridge struct {
	logger ports.Logger
}

// NewLogBridge returns a new LogBridge.
func NewLogBridge(logger ports.Logger) *LogBridge {
	return &LogBridge{logger: logger}
}

// OnStart is called when a span starts.
func (b *LogBridge) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd is called when a span ends.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsValid() {
		return
	}

	args := []any{
		"span", s.Name(),
		"duration", s.EndTime().Sub(s.StartTime()).String(),
	}
	if s.Status().Code == codes.Error {
		args = append(args, "status", "error")
	}
	b.logger.Debug("span completed", args...)
}

// Shutdown does nothing.
func (b *LogBridge) Shutdown(_ context.Context) error { return nil }

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(_ context.Context) error { return nil }

// Setup installs a global tracer provider that feeds the bridge. The returned
// function shuts the provider down.
func Setup(logger ports.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewLogBridge(logger)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
