package otelx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	parent, _ := TraceContextStrings(ctx)
	require.NotEmpty(t, parent)

	restored := ContextWithTraceContext(context.Background(), parent, "")
	assert.Equal(t, TraceID(ctx), TraceID(restored))
}

func TestContextWithoutTraceparentUnchanged(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ContextWithTraceContext(ctx, "", "x"))
	assert.Empty(t, TraceID(ctx))
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false, ServiceName: "booking-service"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSamplerByRatio(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "root:AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "root:TraceIDRatioBased{0.25}")
}
