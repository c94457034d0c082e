package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HTTPConfig configures TracingMiddleware and NewTracedHTTPClient.
type HTTPConfig struct {
	// ExcludedPaths are served without a span, e.g. "/healthz".
	ExcludedPaths []string

	// TracerProvider and Propagators default to the otel globals.
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

func (c *HTTPConfig) options() []otelhttp.Option {
	var opts []otelhttp.Option
	if c == nil {
		return opts
	}
	if c.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(c.TracerProvider))
	}
	if c.Propagators != nil {
		opts = append(opts, otelhttp.WithPropagators(c.Propagators))
	}
	return opts
}

// TracingMiddleware starts a server span for every request, continuing the
// trace of the caller when it sent W3C trace headers. Cache calls made with
// the request context are then correlated with that span.
func TracingMiddleware(serviceName string, cfg *HTTPConfig) func(http.Handler) http.Handler {
	opts := cfg.options()
	if cfg != nil && len(cfg.ExcludedPaths) > 0 {
		excluded := make(map[string]bool, len(cfg.ExcludedPaths))
		for _, p := range cfg.ExcludedPaths {
			excluded[p] = true
		}
		opts = append(opts, otelhttp.WithFilter(func(r *http.Request) bool {
			return !excluded[r.URL.Path]
		}))
	}
	opts = append(opts, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return "HTTP " + r.Method + " " + r.URL.Path
	}))

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, opts...)
	}
}

// NewTracedHTTPClient returns a client that injects trace headers into
// outgoing requests. base defaults to http.DefaultTransport.
func NewTracedHTTPClient(base http.RoundTripper, cfg *HTTPConfig) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: otelhttp.NewTransport(base, cfg.options()...)}
}
