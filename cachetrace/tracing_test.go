package cachetrace

import (
	"bytes"
	"context"
	"testing"

	"github.com/itsneelabh/cacheflight/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TestTracedCallsExportSpanEvents runs a traced cache under a real tracer
// and checks the exported spans carry the cache events.
func TestTracedCallsExportSpanEvents(t *testing.T) {
	var out bytes.Buffer
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(&out))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("cacheflight-test"),
			semconv.ServiceVersion("1.0.0"),
		)),
	)
	tracer := tp.Tracer("cacheflight.test")

	memory := telemetry.NewMemorySink(nil)
	sink := telemetry.NewMultiSink(telemetry.NewSpanSink(nil), memory)
	traced, err := Install[string](setupRedisCache(t), WithSink(sink))
	require.NoError(t, err)

	ctx, root := tracer.Start(context.Background(), "checkout",
		trace.WithAttributes(attribute.String("test.name", "span-events")),
	)
	childCtx, child := tracer.Start(ctx, "reserve-stock")
	_, _, err = traced.Put(childCtx, "sku-1", "reserved")
	require.NoError(t, err)
	_, err = traced.GetAll(childCtx, []string{"sku-1", "sku-2"})
	require.NoError(t, err)
	child.End()
	root.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	exported := out.String()
	for _, name := range []string{
		"cacheflight.RemoteCacheStart",
		"cacheflight.RemoteCache",
		"cacheflight.RemoteCacheEnd",
		"cacheflight.RemoteCacheAllStart",
		"cacheflight.RemoteCacheAllEnd",
	} {
		assert.Contains(t, exported, `"`+name+`"`)
	}
	assert.Contains(t, exported, "cache.element_count")

	// Events were recorded on the child span, not the root.
	for _, ev := range memory.Events() {
		assert.Equal(t, child.SpanContext().SpanID().String(), ev.SpanID)
		assert.Equal(t, root.SpanContext().TraceID().String(), ev.TraceID)
	}
}
