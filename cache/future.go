package cache

import (
	"context"
	"fmt"
	"sync"
)

// Future is the pending result of an asynchronous cache operation. It
// settles exactly once; later completion attempts are ignored.
//
// Continuations registered with OnComplete run in registration order on the
// goroutine that settles the future, or inline when it has already settled.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     T
	err       error
	callbacks []func(T, error)
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already settled with value and err.
func Completed[T any](value T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Complete(value, err)
	return f
}

// Async runs fn on a new goroutine and settles the returned future with its
// result. A panic in fn settles the future with an error.
func Async[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.Complete(zero, fmt.Errorf("cache: async operation panicked: %v", r))
				return
			}
			f.Complete(value, err)
		}()
		value, err = fn()
	}()
	return f
}

// Complete settles the future. It reports false when the future had already
// been settled, in which case nothing happens.
func (f *Future[T]) Complete(value T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
	return true
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has settled.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers fn to observe the outcome.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	fn(value, err)
}

// WhenComplete returns a future that settles with this future's outcome
// after fn has observed it.
func (f *Future[T]) WhenComplete(fn func(T, error)) *Future[T] {
	next := NewFuture[T]()
	f.OnComplete(func(value T, err error) {
		defer next.Complete(value, err)
		fn(value, err)
	})
	return next
}

// Then maps a future's successful value onto another type. Errors pass
// through unchanged.
func Then[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	next := NewFuture[U]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			var zero U
			next.Complete(zero, err)
			return
		}
		next.Complete(fn(value), nil)
	})
	return next
}
