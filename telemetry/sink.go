package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/itsneelabh/cacheflight/core"
)

// Sink accepts cache events.
//
// WouldCommit is probed before an event is populated and must be cheap: it
// only looks at the event kind (and, for Period events, the measured
// duration). Commit receives the populated event. Sinks must not retain ev
// after Commit returns.
type Sink interface {
	WouldCommit(ev *Event) bool
	Commit(ctx context.Context, ev *Event) error
}

// NopSink discards everything and never asks for population.
type NopSink struct{}

func (NopSink) WouldCommit(*Event) bool { return false }

func (NopSink) Commit(context.Context, *Event) error { return nil }

// MemorySink keeps committed events in memory.
type MemorySink struct {
	settings *Settings

	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates a MemorySink. settings may be nil.
func NewMemorySink(settings *Settings) *MemorySink {
	return &MemorySink{settings: settings}
}

func (m *MemorySink) WouldCommit(ev *Event) bool {
	return m.settings.WouldCommit(ev)
}

func (m *MemorySink) Commit(_ context.Context, ev *Event) error {
	m.mu.Lock()
	m.events = append(m.events, *ev)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of the committed events in commit order.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByKind returns the committed events of one kind.
func (m *MemorySink) ByKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops all recorded events.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}

// LoggerSink writes events through a core.Logger at debug level, or info
// level for failed calls.
type LoggerSink struct {
	settings *Settings
	logger   core.ContextLogger
}

// NewLoggerSink creates a LoggerSink. settings may be nil.
func NewLoggerSink(logger core.Logger, settings *Settings) *LoggerSink {
	return &LoggerSink{settings: settings, logger: core.WithContext(logger)}
}

func (l *LoggerSink) WouldCommit(ev *Event) bool {
	return l.settings.WouldCommit(ev)
}

func (l *LoggerSink) Commit(ctx context.Context, ev *Event) error {
	if ev.Kind == KindEnd && ev.Outcome != OutcomeSuccess {
		l.logger.InfoWithContext(ctx, "Remote cache operation failed", ev.Fields())
		return nil
	}
	l.logger.DebugWithContext(ctx, "Remote cache event", ev.Fields())
	return nil
}

// MultiSink fans events out to several sinks. Each child is probed on its
// own, so a child that does not want an event never receives it.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) WouldCommit(ev *Event) bool {
	for _, s := range m.sinks {
		if s.WouldCommit(ev) {
			return true
		}
	}
	return false
}

// Commit delivers ev to every interested child and joins their errors.
func (m *MultiSink) Commit(ctx context.Context, ev *Event) error {
	var errs []error
	for _, s := range m.sinks {
		if !s.WouldCommit(ev) {
			continue
		}
		if err := s.Commit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops background work of children that have any.
func (m *MultiSink) Close() {
	for _, s := range m.sinks {
		closeSink(s)
	}
}

func closeSink(s Sink) {
	if c, ok := s.(interface{ Close() }); ok {
		c.Close()
	}
}
