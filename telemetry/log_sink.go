package telemetry

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

// instrumentationName scopes the loggers, meters and tracers of this module.
const instrumentationName = "github.com/itsneelabh/cacheflight"

// LogSink emits every committed event as an OpenTelemetry log record. The
// record body is the event type label and the event fields become
// attributes, so the three events of one invocation can be joined on
// cache.trace_id and cache.span_id in any log backend.
type LogSink struct {
	settings *Settings
	logger   otellog.Logger
}

// NewLogSink creates a LogSink. settings may be nil.
func NewLogSink(lp otellog.LoggerProvider, settings *Settings) *LogSink {
	return &LogSink{
		settings: settings,
		logger:   lp.Logger(instrumentationName),
	}
}

func (l *LogSink) WouldCommit(ev *Event) bool {
	return l.settings.WouldCommit(ev)
}

func (l *LogSink) Commit(ctx context.Context, ev *Event) error {
	var rec otellog.Record
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now())

	if ev.Kind == KindEnd && ev.Outcome != OutcomeSuccess {
		rec.SetSeverity(otellog.SeverityError)
		rec.SetSeverityText("ERROR")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}

	typ := ev.Type()
	rec.SetBody(otellog.StringValue(typ.Label))
	rec.AddAttributes(eventLogAttributes(ev, typ)...)

	l.logger.Emit(ctx, rec)
	return nil
}

func eventLogAttributes(ev *Event, typ EventType) []otellog.KeyValue {
	attrs := []otellog.KeyValue{
		otellog.String("event.name", typ.Name),
		otellog.String("cache.event.kind", ev.Kind.String()),
		otellog.String("cache.method", ev.Method),
		otellog.String("cache.name", ev.CacheName),
		otellog.String("cache.cluster", ev.ClusterName),
		otellog.String("cache.trace_id", ev.TraceID),
		otellog.String("cache.span_id", ev.SpanID),
	}
	if ev.Batch {
		attrs = append(attrs, otellog.Int("cache.element_count", ev.ElementCount))
	}
	switch ev.Kind {
	case KindPeriod:
		attrs = append(attrs, otellog.Float64("cache.duration_ms", float64(ev.Duration)/float64(time.Millisecond)))
	case KindEnd:
		attrs = append(attrs, otellog.String("cache.outcome", string(ev.Outcome)))
		if ev.Error != "" {
			attrs = append(attrs, otellog.String("error.message", ev.Error))
		}
	}
	return attrs
}
