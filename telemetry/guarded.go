package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// GuardedSink isolates the caller from a sink. Panics and errors of the
// wrapped sink are recovered, counted and logged (rate limited), and Commit
// always returns nil. A circuit breaker drops events while the sink keeps
// failing.
type GuardedSink struct {
	inner   Sink
	circuit *CircuitBreaker
	now     func() time.Time
	started time.Time

	committed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	lastError atomic.Value // string
}

// NewGuardedSink wraps inner. A disabled cfg keeps panic isolation but
// never drops events.
func NewGuardedSink(inner Sink, cfg CircuitConfig) *GuardedSink {
	if inner == nil {
		inner = NopSink{}
	}
	g := &GuardedSink{
		inner:   inner,
		circuit: NewCircuitBreaker(cfg, GetLogger()),
		now:     time.Now,
	}
	g.started = g.now()
	g.lastError.Store("")
	return g
}

// WouldCommit probes the wrapped sink. A panicking probe counts as a
// failure and reports false.
func (g *GuardedSink) WouldCommit(ev *Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.fail(context.Background(), ev, fmt.Errorf("sink probe panicked: %v", r))
			ok = false
		}
	}()
	return g.inner.WouldCommit(ev)
}

// Commit delivers ev unless the circuit is open. It never returns an error.
func (g *GuardedSink) Commit(ctx context.Context, ev *Event) error {
	if !g.circuit.Allow() {
		g.dropped.Add(1)
		return nil
	}
	if err := g.commit(ctx, ev); err != nil {
		g.fail(ctx, ev, err)
		return nil
	}
	g.committed.Add(1)
	g.circuit.RecordSuccess()
	return nil
}

func (g *GuardedSink) commit(ctx context.Context, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return g.inner.Commit(ctx, ev)
}

func (g *GuardedSink) fail(ctx context.Context, ev *Event, err error) {
	g.failed.Add(1)
	g.lastError.Store(err.Error())
	g.circuit.RecordFailure()

	fields := map[string]interface{}{
		"error":         err.Error(),
		"circuit_state": g.circuit.State(),
	}
	if ev != nil {
		fields["kind"] = ev.Kind.String()
		fields["method"] = ev.Method
		fields["cache_name"] = ev.CacheName
	}
	GetLogger().ErrorWithContext(ctx, "Cache event sink failed", fields)
}

// CircuitState returns the breaker state.
func (g *GuardedSink) CircuitState() string {
	return g.circuit.State()
}

// Close closes the wrapped sink if it has background work.
func (g *GuardedSink) Close() {
	closeSink(g.inner)
}
