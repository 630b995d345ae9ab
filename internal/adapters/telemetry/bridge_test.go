package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestLogBridge_ReportsCompletedSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	var captured []any
	logger.EXPECT().
		Debug("span completed", gomock.Any()).
		Do(func(_ string, args ...any) { captured = args }).
		Times(1)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(telemetry.NewLogBridge(logger)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("bridge-test").Start(context.Background(), "node.compute")
	span.End()

	require.GreaterOrEqual(t, len(captured), 4)
	assert.Equal(t, "span", captured[0])
	assert.Equal(t, "node.compute", captured[1])
	assert.Equal(t, "duration", captured[2])
}

func TestLogBridge_MarksErroredSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	var captured []any
	logger.EXPECT().
		Debug("span completed", gomock.Any()).
		Do(func(_ string, args ...any) { captured = args }).
		Times(1)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(telemetry.NewLogBridge(logger)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("bridge-test").Start(context.Background(), "node.compute")
	span.SetStatus(codes.Error, "exit 1")
	span.End()

	assert.Contains(t, captured, "status")
	assert.Contains(t, captured, "error")
}

func TestSetup_SpansReachTheBridge(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug("span completed", gomock.Any()).MinTimes(1)

	prev := otel.GetTracerProvider()
	shutdown := telemetry.Setup(logger)
	t.Cleanup(func() {
		require.NoError(t, shutdown(context.Background()))
		otel.SetTracerProvider(prev)
	})

	// The engine tracer picks up the installed provider.
	tracer := telemetry.NewOTelTracer("setup-test")
	_, span := tracer.Start(context.Background(), "scheduler.run")
	span.End()
}
