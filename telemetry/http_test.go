package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingMiddlewareContinuesCallerTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer("http-test")
	cfg := &HTTPConfig{
		ExcludedPaths:  []string{"/healthz"},
		TracerProvider: tp,
		Propagators:    propagation.TraceContext{},
	}

	var seen []TraceContext
	handler := TracingMiddleware("cacheflight", cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, GetTraceContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, root := tracer.Start(context.Background(), "client")
	client := NewTracedHTTPClient(nil, cfg)
	for _, path := range []string{"/cache/k1", "/healthz"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	root.End()

	require.Len(t, seen, 2)
	assert.Equal(t, root.SpanContext().TraceID().String(), seen[0].TraceID)
	assert.NotEqual(t, root.SpanContext().SpanID().String(), seen[0].SpanID, "server span is a child")
	assert.False(t, seen[1].Valid(), "excluded path has no server span")

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "HTTP GET /cache/k1")
	assert.NotContains(t, names, "HTTP GET /healthz")
}
