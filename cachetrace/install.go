package cachetrace

import (
	"time"

	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/core"
	"github.com/itsneelabh/cacheflight/telemetry"
)

type installOptions struct {
	enabled bool
	sink    telemetry.Sink
	source  telemetry.CorrelationSource
	logger  core.Logger
	now     func() time.Time
}

// Option configures Install.
type Option func(*installOptions)

// WithEnabled turns recording on or off. When off, Install returns the
// delegate itself.
func WithEnabled(enabled bool) Option {
	return func(o *installOptions) { o.enabled = enabled }
}

// WithConfig applies the recorder section of the configuration.
func WithConfig(cfg core.RecorderConfig) Option {
	return func(o *installOptions) { o.enabled = cfg.Enabled }
}

// WithSink sets the event sink. Without one, events are discarded.
func WithSink(sink telemetry.Sink) Option {
	return func(o *installOptions) { o.sink = sink }
}

// WithCorrelationSource replaces the default OpenTelemetry span source.
func WithCorrelationSource(src telemetry.CorrelationSource) Option {
	return func(o *installOptions) { o.source = src }
}

// WithLogger sets the logger for recorder failures. Errors are rate limited
// to one per second.
func WithLogger(l core.Logger) Option {
	return func(o *installOptions) { o.logger = l }
}

// WithClock replaces time.Now for event timestamps and Period durations.
func WithClock(now func() time.Time) Option {
	return func(o *installOptions) { o.now = now }
}

// Install wraps delegate so that its observable operations are recorded.
//
// The decision is made once: with recording disabled the delegate itself
// is returned and calls pay nothing. Enabled wiring checks the operation
// table against the RemoteCache surface first and fails with
// ErrMisconfiguredOperation when they disagree.
func Install[V any](delegate cache.RemoteCache[V], opts ...Option) (cache.RemoteCache[V], error) {
	if delegate == nil {
		return nil, &core.FrameworkError{
			Op:      "cachetrace.Install",
			Kind:    "config",
			Message: "delegate cache is required",
			Err:     core.ErrMissingConfiguration,
		}
	}

	o := installOptions{
		enabled: true,
		source:  telemetry.SpanContextSource{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.enabled {
		return delegate, nil
	}

	if err := ValidateOperations[V](); err != nil {
		return nil, err
	}

	logger := telemetry.GetLogger()
	if o.logger != nil {
		logger = telemetry.NewLimitedLogger(o.logger, time.Second)
	}
	sink := o.sink
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if o.source == nil {
		o.source = telemetry.SpanContextSource{}
	}

	logger.Info("Remote cache telemetry installed", map[string]interface{}{
		"cache_name":   delegate.Name(),
		"cluster_name": delegate.ClusterName(),
		"operations":   len(operations),
	})

	return &TracedCache[V]{
		delegate: delegate,
		in: &interceptor{
			sink:   sink,
			source: o.source,
			logger: logger,
			now:    o.now,
		},
	}, nil
}
