package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOperations = "cacheflight.cache.operations"
	metricDuration   = "cacheflight.cache.operation.duration"
	metricBatchSize  = "cacheflight.cache.batch.size"

	// DefaultCacheNameCardinality bounds distinct cache.name values per metric.
	DefaultCacheNameCardinality = 64
)

// MetricSink turns events into metrics:
//   - End events increment cacheflight.cache.operations by method and outcome
//   - Period events record cacheflight.cache.operation.duration in milliseconds
//   - batch End events record cacheflight.cache.batch.size
//
// Cache names pass through a CardinalityLimiter so that dynamically named
// caches cannot grow the series count without bound.
type MetricSink struct {
	settings *Settings
	limiter  *CardinalityLimiter

	operations metric.Int64Counter
	duration   metric.Float64Histogram
	batchSize  metric.Int64Histogram
}

// NewMetricSink creates the instruments on a meter from mp. settings may be nil.
func NewMetricSink(mp metric.MeterProvider, settings *Settings) (*MetricSink, error) {
	meter := mp.Meter(instrumentationName)

	operations, err1 := meter.Int64Counter(metricOperations,
		metric.WithDescription("Completed remote cache operations"),
		metric.WithUnit("{operation}"),
	)
	duration, err2 := meter.Float64Histogram(metricDuration,
		metric.WithDescription("Duration of remote cache operations"),
		metric.WithUnit("ms"),
	)
	batchSize, err3 := meter.Int64Histogram(metricBatchSize,
		metric.WithDescription("Number of elements touched by batch operations"),
		metric.WithUnit("{element}"),
	)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("create cache instruments: %w", err)
	}

	return &MetricSink{
		settings:   settings,
		limiter:    NewCardinalityLimiter(map[string]int{"cache.name": DefaultCacheNameCardinality}),
		operations: operations,
		duration:   duration,
		batchSize:  batchSize,
	}, nil
}

// WouldCommit accepts Period and End events. Start events carry nothing a
// metric needs.
func (m *MetricSink) WouldCommit(ev *Event) bool {
	if ev == nil || ev.Kind == KindStart {
		return false
	}
	return m.settings.WouldCommit(ev)
}

func (m *MetricSink) Commit(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case KindPeriod:
		m.duration.Record(ctx, float64(ev.Duration)/float64(time.Millisecond),
			metric.WithAttributes(m.attributes(metricDuration, ev)...))
	case KindEnd:
		attrs := append(m.attributes(metricOperations, ev), attribute.String("cache.outcome", string(ev.Outcome)))
		m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
		if ev.Batch {
			m.batchSize.Record(ctx, int64(ev.ElementCount),
				metric.WithAttributes(m.attributes(metricBatchSize, ev)...))
		}
	}
	return nil
}

func (m *MetricSink) attributes(metricName string, ev *Event) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cache.method", ev.Method),
		attribute.String("cache.name", m.limiter.CheckAndLimit(metricName, "cache.name", ev.CacheName)),
		attribute.String("cache.cluster", ev.ClusterName),
		attribute.Bool("cache.batch", ev.Batch),
	}
}

// Close stops the cardinality limiter's cleanup loop.
func (m *MetricSink) Close() {
	m.limiter.Stop()
}
