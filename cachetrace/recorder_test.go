package cachetrace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/cacheflight/core"
	"github.com/itsneelabh/cacheflight/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixedIdentity struct{ name, cluster string }

func (f fixedIdentity) Name() string        { return f.name }
func (f fixedIdentity) ClusterName() string { return f.cluster }

var orders = fixedIdentity{name: "orders", cluster: "cluster1"}

// probeSink records what it was probed with and what it received.
type probeSink struct {
	mu       sync.Mutex
	probes   []telemetry.Event
	commits  []telemetry.Event
	settings *telemetry.Settings
	err      error
	panicOn  telemetry.EventKind
}

func (p *probeSink) WouldCommit(ev *telemetry.Event) bool {
	p.mu.Lock()
	p.probes = append(p.probes, *ev)
	p.mu.Unlock()
	return p.settings.WouldCommit(ev)
}

func (p *probeSink) Commit(_ context.Context, ev *telemetry.Event) error {
	if p.panicOn != 0 && ev.Kind == p.panicOn {
		panic("sink exploded")
	}
	p.mu.Lock()
	p.commits = append(p.commits, *ev)
	p.mu.Unlock()
	return p.err
}

func (p *probeSink) committed() []telemetry.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Event(nil), p.commits...)
}

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func newClock(step time.Duration) *steppingClock {
	return &steppingClock{now: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), step: step}
}

func TestRecorderLifecycle(t *testing.T) {
	sink := &probeSink{}
	ids := telemetry.TraceContext{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", SpanID: "00f067aa0ba902b7"}
	rec := NewRecorder(opPut, orders, ids, RecorderOptions{Sink: sink, Now: newClock(time.Millisecond).Now})
	ctx := context.Background()

	assert.Equal(t, StateCreated, rec.State())
	require.NoError(t, rec.CommitStart(ctx))
	assert.Equal(t, StateStarted, rec.State())
	require.NoError(t, rec.BeginPeriod(ctx))
	assert.Equal(t, StateInProgress, rec.State())
	require.NoError(t, rec.EndPeriod(ctx))
	require.NoError(t, rec.CommitEnd(ctx, nil))
	assert.Equal(t, StateCompleted, rec.State())

	events := sink.committed()
	require.Len(t, events, 3)
	kinds := []telemetry.EventKind{telemetry.KindStart, telemetry.KindPeriod, telemetry.KindEnd}
	for i, ev := range events {
		assert.Equal(t, kinds[i], ev.Kind)
		assert.Equal(t, "Put", ev.Method)
		assert.Equal(t, "orders", ev.CacheName)
		assert.Equal(t, "cluster1", ev.ClusterName)
		assert.Equal(t, ids.TraceID, ev.TraceID)
		assert.Equal(t, ids.SpanID, ev.SpanID)
		assert.False(t, ev.Batch)
	}
	assert.Equal(t, time.Millisecond, events[1].Duration)
	assert.Equal(t, telemetry.OutcomeSuccess, events[2].Outcome)
}

func TestRecorderProbesBeforePopulating(t *testing.T) {
	sink := &probeSink{}
	rec := NewRecorder(opGet, orders, telemetry.TraceContext{TraceID: "t", SpanID: "s"}, RecorderOptions{Sink: sink})
	require.NoError(t, rec.Start(context.Background()))
	require.True(t, rec.Finish(context.Background(), nil))

	require.Len(t, sink.probes, 3)
	for _, probe := range sink.probes {
		assert.Empty(t, probe.Method)
		assert.Empty(t, probe.CacheName)
		assert.Empty(t, probe.TraceID)
	}
}

func TestRecorderRejectsOutOfOrderSteps(t *testing.T) {
	ctx := context.Background()
	sink := &probeSink{}
	rec := NewRecorder(opGet, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink})

	assert.ErrorIs(t, rec.BeginPeriod(ctx), ErrRecorderState)
	assert.ErrorIs(t, rec.EndPeriod(ctx), ErrRecorderState)
	assert.ErrorIs(t, rec.CommitEnd(ctx, nil), ErrRecorderState)
	assert.Equal(t, StateCreated, rec.State())

	require.NoError(t, rec.CommitStart(ctx))
	assert.ErrorIs(t, rec.CommitStart(ctx), ErrRecorderState)
	require.NoError(t, rec.BeginPeriod(ctx))
	assert.ErrorIs(t, rec.CommitEnd(ctx, nil), ErrRecorderState, "End before Period ended")
	require.NoError(t, rec.EndPeriod(ctx))
	require.NoError(t, rec.CommitEnd(ctx, nil))
	assert.ErrorIs(t, rec.CommitEnd(ctx, nil), ErrRecorderState)

	var fe *core.FrameworkError
	err := rec.CommitStart(ctx)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Recorder.CommitStart", fe.Op)
	assert.Equal(t, "Get", fe.ID)

	assert.Len(t, sink.committed(), 3, "rejected steps emit nothing")
}

func TestRecorderFinishIsOneShot(t *testing.T) {
	ctx := context.Background()
	sink := &probeSink{}
	rec := NewRecorder(opGetAsync, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink})
	require.NoError(t, rec.Start(ctx))

	var wg sync.WaitGroup
	var wins sync.Map
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if rec.Finish(ctx, nil) {
				wins.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	n := 0
	wins.Range(func(_, _ interface{}) bool { n++; return true })
	assert.Equal(t, 1, n)
	assert.Len(t, sink.committed(), 3)
}

func TestRecorderFinishBeforeStart(t *testing.T) {
	rec := NewRecorder(opGet, orders, telemetry.TraceContext{}, RecorderOptions{})
	assert.False(t, rec.Finish(context.Background(), nil))
	assert.False(t, rec.Finish(context.Background(), nil))
}

func TestRecorderOutcome(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome telemetry.Outcome
		message string
	}{
		{"success", nil, telemetry.OutcomeSuccess, ""},
		{"error", errors.New("connection reset"), telemetry.OutcomeError, "connection reset"},
		{"panic", &PanicError{Value: "kaboom"}, telemetry.OutcomePanic, "panic: kaboom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &probeSink{}
			rec := NewRecorder(opRemove, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink})
			require.NoError(t, rec.Start(context.Background()))
			rec.Finish(context.Background(), tt.err)

			end := sink.committed()[2]
			assert.Equal(t, tt.outcome, end.Outcome)
			assert.Equal(t, tt.message, end.Error)
		})
	}
}

func TestBatchRecorder(t *testing.T) {
	sink := &probeSink{}
	rec := NewBatchRecorder(opGetAll, orders, telemetry.TraceContext{}, 7, RecorderOptions{Sink: sink})
	assert.Equal(t, 7, rec.ElementCount())
	require.NoError(t, rec.Start(context.Background()))
	rec.Finish(context.Background(), nil)

	events := sink.committed()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.True(t, ev.Batch)
		assert.Equal(t, 7, ev.ElementCount)
		assert.Equal(t, "GetAll", ev.Method)
	}
	assert.Equal(t, "cacheflight.RemoteCacheAllStart", events[0].Type().Name)
}

func TestRecorderHonoursSettings(t *testing.T) {
	settings := telemetry.AllEnabled()
	settings.SetEnabled(telemetry.KindStart, false)
	settings.SetPeriodThreshold(10 * time.Millisecond)
	sink := &probeSink{settings: settings}

	// Period lasts one clock step: 5ms, below the threshold.
	rec := NewRecorder(opPut, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink, Now: newClock(5 * time.Millisecond).Now})
	require.NoError(t, rec.Start(context.Background()))
	rec.Finish(context.Background(), nil)

	events := sink.committed()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.KindEnd, events[0].Kind)

	// 20ms passes the threshold.
	sink = &probeSink{settings: settings}
	rec = NewRecorder(opPut, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink, Now: newClock(20 * time.Millisecond).Now})
	require.NoError(t, rec.Start(context.Background()))
	rec.Finish(context.Background(), nil)
	require.Len(t, sink.committed(), 2)
	assert.Equal(t, 20*time.Millisecond, sink.committed()[0].Duration)
}

func TestRecorderIsolatesSinkFailures(t *testing.T) {
	zapCore, logs := observer.New(zapcore.DebugLevel)
	logger := core.NewZapLoggerFrom(zap.New(zapCore))

	t.Run("error", func(t *testing.T) {
		sink := &probeSink{err: errors.New("collector down")}
		rec := NewRecorder(opPut, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink, Logger: logger})
		assert.NoError(t, rec.Start(context.Background()))
		assert.True(t, rec.Finish(context.Background(), nil))
		assert.Equal(t, StateCompleted, rec.State())
	})

	t.Run("panic", func(t *testing.T) {
		sink := &probeSink{panicOn: telemetry.KindStart}
		rec := NewRecorder(opPut, orders, telemetry.TraceContext{}, RecorderOptions{Sink: sink, Logger: logger})
		assert.NotPanics(t, func() {
			assert.NoError(t, rec.Start(context.Background()))
			assert.True(t, rec.Finish(context.Background(), nil))
		})
		assert.Len(t, sink.committed(), 2, "Period and End still delivered")
	})

	assert.NotZero(t, logs.FilterMessage("Failed to record cache event").Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CREATED", StateCreated.String())
	assert.Equal(t, "STARTED", StateStarted.String())
	assert.Equal(t, "IN_PROGRESS", StateInProgress.String())
	assert.Equal(t, "COMPLETED", StateCompleted.String())
	assert.Equal(t, "State(42)", State(42).String())
}
