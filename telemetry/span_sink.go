package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// SpanSink records events on the span active in the caller's context, so
// trace viewers show cache calls inline with the request that made them.
// Failed End events also record the error on the span.
type SpanSink struct {
	settings *Settings
}

// NewSpanSink creates a SpanSink. settings may be nil.
func NewSpanSink(settings *Settings) *SpanSink {
	return &SpanSink{settings: settings}
}

func (s *SpanSink) WouldCommit(ev *Event) bool {
	return s.settings.WouldCommit(ev)
}

func (s *SpanSink) Commit(ctx context.Context, ev *Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("cache.method", ev.Method),
		attribute.String("cache.name", ev.CacheName),
		attribute.String("cache.cluster", ev.ClusterName),
	}
	if ev.Batch {
		attrs = append(attrs, attribute.Int("cache.element_count", ev.ElementCount))
	}
	switch ev.Kind {
	case KindPeriod:
		attrs = append(attrs, attribute.Float64("cache.duration_ms", float64(ev.Duration)/float64(time.Millisecond)))
	case KindEnd:
		attrs = append(attrs, attribute.String("cache.outcome", string(ev.Outcome)))
	}

	AddSpanEvent(ctx, ev.Type().Name, attrs...)
	if ev.Kind == KindEnd && ev.Error != "" {
		RecordSpanError(ctx, errors.New(ev.Error), attribute.String("cache.method", ev.Method))
	}
	return nil
}
