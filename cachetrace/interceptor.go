package cachetrace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/core"
	"github.com/itsneelabh/cacheflight/telemetry"
)

// ErrNilFuture is recorded when an asynchronous delegate call returns no
// future. The nil future itself is returned to the caller.
var ErrNilFuture = errors.New("delegate returned a nil future")

// interceptor wraps tagged calls with a Recorder.
type interceptor struct {
	sink   telemetry.Sink
	source telemetry.CorrelationSource
	logger core.ContextLogger
	now    func() time.Time
}

// begin resolves the correlation context, creates the recorder for op and
// runs its Start step. count is only used for Batch operations.
func (in *interceptor) begin(ctx context.Context, op Operation, target Identity, count int) *Recorder {
	ids := in.correlate(ctx)
	opts := RecorderOptions{Sink: in.sink, Logger: in.logger, Now: in.now}

	var rec *Recorder
	if op.Target == Batch {
		rec = NewBatchRecorder(op, target, ids, count, opts)
	} else {
		rec = NewRecorder(op, target, ids, opts)
	}
	if err := rec.Start(ctx); err != nil {
		in.logger.DebugWithContext(ctx, "Recorder did not start", map[string]interface{}{
			"method": op.Method,
			"error":  err,
		})
	}
	return rec
}

func (in *interceptor) correlate(ctx context.Context) (tc telemetry.TraceContext) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.ErrorWithContext(ctx, "Correlation source panicked", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
			tc = telemetry.TraceContext{}
		}
	}()
	return telemetry.Correlate(ctx, in.source)
}

// finishSync is deferred by the sync helpers. It records the outcome and
// re-panics with the original value when the delegate panicked.
func finishSync(ctx context.Context, rec *Recorder, errp *error) {
	if r := recover(); r != nil {
		rec.Finish(ctx, &PanicError{Value: r})
		panic(r)
	}
	rec.Finish(ctx, *errp)
}

func invokeErr(ctx context.Context, in *interceptor, op Operation, target Identity, count int, fn func() error) (err error) {
	rec := in.begin(ctx, op, target, count)
	defer finishSync(ctx, rec, &err)
	return fn()
}

func invoke1[A any](ctx context.Context, in *interceptor, op Operation, target Identity, count int, fn func() (A, error)) (a A, err error) {
	rec := in.begin(ctx, op, target, count)
	defer finishSync(ctx, rec, &err)
	return fn()
}

func invoke2[A, B any](ctx context.Context, in *interceptor, op Operation, target Identity, count int, fn func() (A, B, error)) (a A, b B, err error) {
	rec := in.begin(ctx, op, target, count)
	defer finishSync(ctx, rec, &err)
	return fn()
}

// invokeAsync starts the recorder, calls fn and returns a future that
// settles with the delegate's outcome after Period and End were recorded.
func invokeAsync[T any](ctx context.Context, in *interceptor, op Operation, target Identity, count int, fn func() *cache.Future[T]) *cache.Future[T] {
	rec := in.begin(ctx, op, target, count)

	f := callAsync(ctx, rec, fn)
	if f == nil {
		rec.Finish(ctx, ErrNilFuture)
		return nil
	}
	return f.WhenComplete(func(_ T, err error) {
		rec.Finish(ctx, err)
	})
}

// callAsync finishes rec when fn panics before handing out a future.
func callAsync[T any](ctx context.Context, rec *Recorder, fn func() *cache.Future[T]) *cache.Future[T] {
	defer func() {
		if r := recover(); r != nil {
			rec.Finish(ctx, &PanicError{Value: r})
			panic(r)
		}
	}()
	return fn()
}
