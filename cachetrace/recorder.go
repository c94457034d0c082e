package cachetrace

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/cacheflight/core"
	"github.com/itsneelabh/cacheflight/telemetry"
)

// ErrRecorderState is returned when a Recorder step is called out of order
// or twice.
var ErrRecorderState = errors.New("recorder state violation")

// State is the lifecycle position of a Recorder.
type State int32

const (
	StateCreated State = iota
	StateStarted
	StateInProgress
	statePeriodEnded
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateStarted:
		return "STARTED"
	case StateInProgress:
		return "IN_PROGRESS"
	case statePeriodEnded:
		return "PERIOD_ENDED"
	case StateCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Identity names the cache an event is about. RemoteCache implementations
// satisfy it.
type Identity interface {
	Name() string
	ClusterName() string
}

// PanicError carries a value recovered from a panicking delegate so that the
// End event can report it. The value is re-panicked unchanged.
type PanicError struct {
	Value interface{}
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// RecorderOptions holds the collaborators of a Recorder.
type RecorderOptions struct {
	Sink   telemetry.Sink
	Logger core.Logger // nil uses the telemetry package logger
	Now    func() time.Time
}

// Recorder emits the Start, Period and End events of one invocation. It is
// owned by that invocation and cannot be reused after completing.
//
// Steps must run in order: CommitStart, BeginPeriod, EndPeriod, CommitEnd.
// A step called out of order returns ErrRecorderState and does nothing.
// Sink failures are logged and never returned.
type Recorder struct {
	op     Operation
	target Identity
	ids    telemetry.TraceContext
	batch  bool
	count  int

	sink   telemetry.Sink
	logger core.ContextLogger
	now    func() time.Time

	state    atomic.Int32
	finished atomic.Bool
	period   telemetry.Event
}

// NewRecorder creates a recorder for a single-key invocation.
func NewRecorder(op Operation, target Identity, ids telemetry.TraceContext, opts RecorderOptions) *Recorder {
	return newRecorder(op, target, ids, false, 0, opts)
}

// NewBatchRecorder creates a recorder whose events carry elementCount.
func NewBatchRecorder(op Operation, target Identity, ids telemetry.TraceContext, elementCount int, opts RecorderOptions) *Recorder {
	return newRecorder(op, target, ids, true, elementCount, opts)
}

func newRecorder(op Operation, target Identity, ids telemetry.TraceContext, batch bool, count int, opts RecorderOptions) *Recorder {
	r := &Recorder{
		op:     op,
		target: target,
		ids:    ids,
		batch:  batch,
		count:  count,
		sink:   opts.Sink,
		now:    opts.Now,
	}
	if r.sink == nil {
		r.sink = telemetry.NopSink{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if opts.Logger != nil {
		r.logger = core.WithContext(opts.Logger)
	} else {
		r.logger = telemetry.GetLogger()
	}
	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// ElementCount returns the batch size, or 0 for single-key recorders.
func (r *Recorder) ElementCount() int {
	return r.count
}

func (r *Recorder) advance(from, to State, step string) error {
	if r.state.CompareAndSwap(int32(from), int32(to)) {
		return nil
	}
	return &core.FrameworkError{
		Op:      "Recorder." + step,
		Kind:    "recorder",
		ID:      r.op.Method,
		Message: fmt.Sprintf("expected state %s, got %s", from, r.State()),
		Err:     ErrRecorderState,
	}
}

// CommitStart commits the Start event if the sink wants one.
func (r *Recorder) CommitStart(ctx context.Context) error {
	if err := r.advance(StateCreated, StateStarted, "CommitStart"); err != nil {
		return err
	}
	ev := telemetry.Event{Kind: telemetry.KindStart, Batch: r.batch}
	if r.wouldCommit(ctx, &ev) {
		ev.Time = r.now()
		r.commit(ctx, &ev)
	}
	return nil
}

// BeginPeriod starts measuring the remote call.
func (r *Recorder) BeginPeriod(context.Context) error {
	if err := r.advance(StateStarted, StateInProgress, "BeginPeriod"); err != nil {
		return err
	}
	r.period = telemetry.Event{Kind: telemetry.KindPeriod, Batch: r.batch}
	r.period.Begin(r.now())
	return nil
}

// EndPeriod stops measuring and commits the Period event if the sink wants
// one of this duration.
func (r *Recorder) EndPeriod(ctx context.Context) error {
	if err := r.advance(StateInProgress, statePeriodEnded, "EndPeriod"); err != nil {
		return err
	}
	r.period.End(r.now())
	if r.wouldCommit(ctx, &r.period) {
		r.commit(ctx, &r.period)
	}
	return nil
}

// CommitEnd commits the End event. A non-nil callErr marks the call failed;
// a *PanicError marks it panicked.
func (r *Recorder) CommitEnd(ctx context.Context, callErr error) error {
	if err := r.advance(statePeriodEnded, StateCompleted, "CommitEnd"); err != nil {
		return err
	}
	ev := telemetry.Event{Kind: telemetry.KindEnd, Batch: r.batch}
	if r.wouldCommit(ctx, &ev) {
		ev.Time = r.now()
		ev.Outcome = telemetry.OutcomeSuccess
		if callErr != nil {
			ev.Outcome = telemetry.OutcomeError
			var pe *PanicError
			if errors.As(callErr, &pe) {
				ev.Outcome = telemetry.OutcomePanic
			}
			ev.Error = callErr.Error()
		}
		r.commit(ctx, &ev)
	}
	return nil
}

// Start runs CommitStart and BeginPeriod.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.CommitStart(ctx); err != nil {
		return err
	}
	return r.BeginPeriod(ctx)
}

// Finish runs EndPeriod and CommitEnd once. It reports whether this call
// completed the recorder; later calls return false and do nothing.
func (r *Recorder) Finish(ctx context.Context, callErr error) bool {
	if !r.finished.CompareAndSwap(false, true) {
		return false
	}
	if err := r.EndPeriod(ctx); err != nil {
		r.logger.DebugWithContext(ctx, "Recorder finished out of order", map[string]interface{}{
			"method": r.op.Method,
			"error":  err,
		})
		return false
	}
	_ = r.CommitEnd(ctx, callErr)
	return true
}

func (r *Recorder) wouldCommit(ctx context.Context, ev *telemetry.Event) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.sinkFailed(ctx, ev, fmt.Errorf("sink probe panicked: %v", p))
			ok = false
		}
	}()
	return r.sink.WouldCommit(ev)
}

func (r *Recorder) commit(ctx context.Context, ev *telemetry.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.sinkFailed(ctx, ev, fmt.Errorf("sink panicked: %v", p))
		}
	}()
	r.populate(ev)
	if err := r.sink.Commit(ctx, ev); err != nil {
		r.sinkFailed(ctx, ev, err)
	}
}

// populate fills the fields shared by all events. Cache identity is read
// from the target each time.
func (r *Recorder) populate(ev *telemetry.Event) {
	ev.Method = r.op.Method
	ev.TraceID = r.ids.TraceID
	ev.SpanID = r.ids.SpanID
	ev.CacheName = r.target.Name()
	ev.ClusterName = r.target.ClusterName()
	if r.batch {
		ev.ElementCount = r.count
	}
}

func (r *Recorder) sinkFailed(ctx context.Context, ev *telemetry.Event, err error) {
	r.logger.ErrorWithContext(ctx, "Failed to record cache event", map[string]interface{}{
		"method": r.op.Method,
		"kind":   ev.Kind.String(),
		"error":  err,
	})
}
