package telemetry

import (
	"fmt"

	"github.com/itsneelabh/cacheflight/core"
)

// NewSinkFromConfig assembles the sinks named in cfg.Telemetry.Sinks behind a
// GuardedSink configured from cfg.Recorder.CircuitBreaker. extra sinks (a
// MemorySink in tests, say) are appended to the configured ones.
func NewSinkFromConfig(cfg *core.Config, providers *Providers, logger core.Logger, settings *Settings, extra ...Sink) (*GuardedSink, error) {
	var sinks []Sink
	for _, name := range cfg.Telemetry.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, NewLogSink(providers.LoggerProvider(), settings))
		case "metric":
			ms, err := NewMetricSink(providers.MeterProvider(), settings)
			if err != nil {
				NewMultiSink(sinks...).Close()
				return nil, core.NewFrameworkError("telemetry.NewSinkFromConfig", "sink", err)
			}
			sinks = append(sinks, ms)
		case "span":
			sinks = append(sinks, NewSpanSink(settings))
		case "logger":
			sinks = append(sinks, NewLoggerSink(logger, settings))
		default:
			NewMultiSink(sinks...).Close()
			return nil, &core.FrameworkError{
				Op:      "telemetry.NewSinkFromConfig",
				Kind:    "config",
				Message: fmt.Sprintf("unknown sink %q", name),
				Err:     core.ErrInvalidConfiguration,
			}
		}
	}
	sinks = append(sinks, extra...)

	GetLogger().Debug("Cache event sinks assembled", map[string]interface{}{
		"sinks":           cfg.Telemetry.Sinks,
		"extra":           len(extra),
		"circuit_enabled": cfg.Recorder.CircuitBreaker.Enabled,
	})
	return NewGuardedSink(NewMultiSink(sinks...), CircuitConfigFrom(cfg.Recorder.CircuitBreaker)), nil
}
