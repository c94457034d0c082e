package telemetry

import "context"

// CorrelationSource supplies the identifiers that join the events of one
// invocation. Both methods are called once per invocation.
type CorrelationSource interface {
	TraceID(ctx context.Context) string
	SpanID(ctx context.Context) string
}

// SpanContextSource reads identifiers from the active OpenTelemetry span.
// Without a valid span both identifiers are empty.
type SpanContextSource struct{}

func (SpanContextSource) TraceID(ctx context.Context) string { return GetTraceContext(ctx).TraceID }

func (SpanContextSource) SpanID(ctx context.Context) string { return GetTraceContext(ctx).SpanID }

// StaticSource returns fixed identifiers. Useful for tests and for callers
// that correlate on their own request ids.
type StaticSource struct {
	Trace string
	Span  string
}

func (s StaticSource) TraceID(context.Context) string { return s.Trace }

func (s StaticSource) SpanID(context.Context) string { return s.Span }

// Correlate resolves both identifiers from src.
func Correlate(ctx context.Context, src CorrelationSource) TraceContext {
	if src == nil {
		return TraceContext{}
	}
	return TraceContext{TraceID: src.TraceID(ctx), SpanID: src.SpanID(ctx)}
}
