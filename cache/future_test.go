package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureCompleteOnce(t *testing.T) {
	f := NewFuture[int]()
	assert.False(t, f.IsDone())

	assert.True(t, f.Complete(1, nil))
	assert.False(t, f.Complete(2, errors.New("late")))
	assert.True(t, f.IsDone())

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFutureConcurrentCompletion(t *testing.T) {
	f := NewFuture[int]()
	var calls atomic.Int32
	f.OnComplete(func(int, error) { calls.Add(1) })

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if f.Complete(i, nil) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), calls.Load())
}

func TestFutureCallbacksRunInOrder(t *testing.T) {
	f := NewFuture[string]()
	var order []int
	f.OnComplete(func(string, error) { order = append(order, 1) })
	f.OnComplete(func(string, error) { order = append(order, 2) })

	f.Complete("v", nil)
	f.OnComplete(func(string, error) { order = append(order, 3) })

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestFutureAwaitHonoursContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFutureWhenComplete(t *testing.T) {
	boom := errors.New("boom")
	f := NewFuture[int]()

	var observed error
	next := f.WhenComplete(func(_ int, err error) {
		observed = err
	})
	assert.False(t, next.IsDone(), "derived future settles only after the source")

	f.Complete(7, boom)

	v, err := next.Await(context.Background())
	assert.Equal(t, 7, v)
	assert.Same(t, boom, err)
	assert.Same(t, boom, observed)
}

func TestFutureWhenCompleteSettlesAfterObserverPanic(t *testing.T) {
	f := NewFuture[int]()
	next := f.WhenComplete(func(int, error) { panic("observer") })

	assert.Panics(t, func() { f.Complete(1, nil) })

	v, err := next.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAsync(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		v, err := Async(func() (string, error) { return "ok", nil }).Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Async(func() (string, error) { return "", boom }).Await(context.Background())
		assert.Same(t, boom, err)
	})

	t.Run("panic", func(t *testing.T) {
		_, err := Async(func() (string, error) { panic("bad") }).Await(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad")
	})
}

func TestCompletedAndThen(t *testing.T) {
	f := Completed(21, nil)
	assert.True(t, f.IsDone())

	doubled, err := Then(f, func(v int) int { return v * 2 }).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, doubled)

	boom := errors.New("boom")
	_, err = Then(Completed(0, boom), func(v int) int { return v }).Await(context.Background())
	assert.Same(t, boom, err)
}
