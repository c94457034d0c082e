package cachetrace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/core"
	"github.com/itsneelabh/cacheflight/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"pgregory.net/rapid"
)

const (
	testTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	testSpanID  = "00f067aa0ba902b7"
)

func setupRedisCache(t testing.TB) *cache.RedisCache[string] {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL:  "redis://" + mr.Addr(),
		DB:        -1,
		Namespace: "cacheflight",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c, err := cache.NewRedisCache[string](client, cache.StringCodec{}, cache.RedisCacheOptions{
		Name:        "orders",
		ClusterName: "cluster1",
	})
	require.NoError(t, err)
	return c
}

func installTraced(t testing.TB, delegate cache.RemoteCache[string], opts ...Option) (cache.RemoteCache[string], *telemetry.MemorySink) {
	t.Helper()
	sink := telemetry.NewMemorySink(nil)
	base := []Option{
		WithSink(sink),
		WithCorrelationSource(telemetry.StaticSource{Trace: testTraceID, Span: testSpanID}),
	}
	traced, err := Install[string](delegate, append(base, opts...)...)
	require.NoError(t, err)
	return traced, sink
}

func assertTriple(t *testing.T, events []telemetry.Event, method string) {
	t.Helper()
	require.Len(t, events, 3, "events for %s", method)
	kinds := []telemetry.EventKind{telemetry.KindStart, telemetry.KindPeriod, telemetry.KindEnd}
	for i, ev := range events {
		assert.Equal(t, kinds[i], ev.Kind, method)
		assert.Equal(t, method, ev.Method)
		assert.Equal(t, events[0].TraceID, ev.TraceID)
		assert.Equal(t, events[0].SpanID, ev.SpanID)
	}
}

func TestPutScenario(t *testing.T) {
	traced, sink := installTraced(t, setupRedisCache(t))

	_, _, err := traced.Put(context.Background(), "key", "value")
	require.NoError(t, err)

	events := sink.Events()
	assertTriple(t, events, "Put")
	start, end := events[0], events[2]
	assert.Equal(t, "orders", start.CacheName)
	assert.Equal(t, "cluster1", start.ClusterName)
	assert.Equal(t, testTraceID, start.TraceID)
	assert.Equal(t, testSpanID, start.SpanID)
	assert.Equal(t, "orders", end.CacheName)
	assert.Equal(t, "cluster1", end.ClusterName)
	assert.Equal(t, telemetry.OutcomeSuccess, end.Outcome)

	v, found, err := traced.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", v)
}

func TestGetAllScenario(t *testing.T) {
	delegate := setupRedisCache(t)
	ctx := context.Background()
	require.NoError(t, delegate.PutAll(ctx, map[string]string{"k1": "v1", "k2": "v2"}))

	traced, sink := installTraced(t, delegate)
	got, err := traced.GetAll(ctx, []string{"k1", "k2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, got)

	events := sink.Events()
	assertTriple(t, events, "GetAll")
	for _, ev := range events {
		assert.True(t, ev.Batch)
		assert.Equal(t, 2, ev.ElementCount)
		assert.Equal(t, testTraceID, ev.TraceID)
		assert.Equal(t, testSpanID, ev.SpanID)
	}
}

func TestBatchElementCountProperty(t *testing.T) {
	traced, sink := installTraced(t, setupRedisCache(t))
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z]{1,8}`), rapid.ID[string]).Draw(rt, "keys")
		sink.Reset()

		entries := make(map[string]string, len(keys))
		for _, k := range keys {
			entries[k] = "v-" + k
		}
		if err := traced.PutAll(ctx, entries); err != nil {
			rt.Fatalf("PutAll: %v", err)
		}
		if _, err := traced.GetAll(ctx, keys); err != nil {
			rt.Fatalf("GetAll: %v", err)
		}

		events := sink.Events()
		if len(events) != 6 {
			rt.Fatalf("expected 6 events, got %d", len(events))
		}
		for _, ev := range events {
			if !ev.Batch || ev.ElementCount != len(keys) {
				rt.Fatalf("%s %s: element count %d, want %d", ev.Method, ev.Kind, ev.ElementCount, len(keys))
			}
		}
	})
}

func TestEveryOperationRecordsTriple(t *testing.T) {
	delegate := setupRedisCache(t)
	traced, sink := installTraced(t, delegate)
	ctx := context.Background()
	require.NoError(t, delegate.PutAll(ctx, map[string]string{"a": "1", "b": "2"}))

	upper := func(_ string, v string) string { return v + "!" }
	concat := func(cur, v string) (string, bool) { return cur + v, true }
	compute := func(_ string, cur string, found bool) (string, bool) { return cur + "c", true }
	ifAbsent := func(string) (string, bool) { return "new", true }
	ifPresent := func(_ string, cur string) (string, bool) { return cur + "p", true }

	calls := map[string]func(){
		"Get":                func() { _, _, _ = traced.Get(ctx, "a") },
		"GetOrDefault":       func() { _, _ = traced.GetOrDefault(ctx, "zz", "def") },
		"GetWithMetadata":    func() { _, _, _ = traced.GetWithMetadata(ctx, "a") },
		"GetAll":             func() { _, _ = traced.GetAll(ctx, []string{"a", "b"}) },
		"ContainsKey":        func() { _, _ = traced.ContainsKey(ctx, "a") },
		"ContainsValue":      func() { _, _ = traced.ContainsValue(ctx, "1") },
		"Put":                func() { _, _, _ = traced.Put(ctx, "c", "3") },
		"PutIfAbsent":        func() { _, _, _ = traced.PutIfAbsent(ctx, "d", "4") },
		"PutAll":             func() { _ = traced.PutAll(ctx, map[string]string{"e": "5"}) },
		"Replace":            func() { _, _, _ = traced.Replace(ctx, "a", "1b") },
		"ReplaceIfEquals":    func() { _, _ = traced.ReplaceIfEquals(ctx, "a", "1b", "1c") },
		"ReplaceWithVersion": func() { _, _ = traced.ReplaceWithVersion(ctx, "a", "1d", 1) },
		"ReplaceAll":         func() { _ = traced.ReplaceAll(ctx, upper) },
		"Remove":             func() { _, _, _ = traced.Remove(ctx, "e") },
		"RemoveIfEquals":     func() { _, _ = traced.RemoveIfEquals(ctx, "d", "4") },
		"RemoveWithVersion":  func() { _, _ = traced.RemoveWithVersion(ctx, "c", 99) },
		"Compute":            func() { _, _, _ = traced.Compute(ctx, "f", compute) },
		"ComputeIfAbsent":    func() { _, _, _ = traced.ComputeIfAbsent(ctx, "g", ifAbsent) },
		"ComputeIfPresent":   func() { _, _, _ = traced.ComputeIfPresent(ctx, "g", ifPresent) },
		"Merge":              func() { _, _, _ = traced.Merge(ctx, "g", "m", concat) },
		"Size":               func() { _, _ = traced.Size(ctx) },
		"IsEmpty":            func() { _, _ = traced.IsEmpty(ctx) },

		"GetAsync":                func() { _, _ = traced.GetAsync(ctx, "a").Await(ctx) },
		"GetWithMetadataAsync":    func() { _, _ = traced.GetWithMetadataAsync(ctx, "a").Await(ctx) },
		"GetAllAsync":             func() { _, _ = traced.GetAllAsync(ctx, []string{"a"}).Await(ctx) },
		"ContainsKeyAsync":        func() { _, _ = traced.ContainsKeyAsync(ctx, "a").Await(ctx) },
		"PutAsync":                func() { _, _ = traced.PutAsync(ctx, "h", "8").Await(ctx) },
		"PutIfAbsentAsync":        func() { _, _ = traced.PutIfAbsentAsync(ctx, "i", "9").Await(ctx) },
		"PutAllAsync":             func() { _, _ = traced.PutAllAsync(ctx, map[string]string{"j": "10"}).Await(ctx) },
		"ReplaceAsync":            func() { _, _ = traced.ReplaceAsync(ctx, "h", "8b").Await(ctx) },
		"ReplaceIfEqualsAsync":    func() { _, _ = traced.ReplaceIfEqualsAsync(ctx, "h", "8b", "8c").Await(ctx) },
		"ReplaceWithVersionAsync": func() { _, _ = traced.ReplaceWithVersionAsync(ctx, "h", "8d", 1).Await(ctx) },
		"RemoveAsync":             func() { _, _ = traced.RemoveAsync(ctx, "j").Await(ctx) },
		"RemoveIfEqualsAsync":     func() { _, _ = traced.RemoveIfEqualsAsync(ctx, "i", "9").Await(ctx) },
		"RemoveWithVersionAsync":  func() { _, _ = traced.RemoveWithVersionAsync(ctx, "h", 99).Await(ctx) },
		"ComputeAsync":            func() { _, _ = traced.ComputeAsync(ctx, "k", compute).Await(ctx) },
		"ComputeIfAbsentAsync":    func() { _, _ = traced.ComputeIfAbsentAsync(ctx, "l", ifAbsent).Await(ctx) },
		"ComputeIfPresentAsync":   func() { _, _ = traced.ComputeIfPresentAsync(ctx, "l", ifPresent).Await(ctx) },
		"MergeAsync":              func() { _, _ = traced.MergeAsync(ctx, "l", "m", concat).Await(ctx) },
		"SizeAsync":               func() { _, _ = traced.SizeAsync(ctx).Await(ctx) },
	}
	require.Len(t, calls, len(Operations()), "every operation has a call")

	for _, op := range Operations() {
		call, ok := calls[op.Method]
		require.True(t, ok, op.Method)
		sink.Reset()
		call()
		events := sink.Events()
		assertTriple(t, events, op.Method)
		assert.Equal(t, op.Target == Batch, events[0].Batch, op.Method)
	}
}

func TestUntaggedMethodsRecordNothing(t *testing.T) {
	traced, sink := installTraced(t, setupRedisCache(t))
	ctx := context.Background()

	assert.Equal(t, "orders", traced.Name())
	assert.Equal(t, "cluster1", traced.ClusterName())
	_, err := traced.Keys(ctx)
	require.NoError(t, err)
	_, err = traced.Values(ctx)
	require.NoError(t, err)
	_, err = traced.Entries(ctx)
	require.NoError(t, err)
	require.NoError(t, traced.Ping(ctx))
	_ = traced.Statistics()
	require.NoError(t, traced.Clear(ctx))
	_, err = traced.ClearAsync(ctx).Await(ctx)
	require.NoError(t, err)
	require.NoError(t, traced.Close())

	assert.Empty(t, sink.Events())
}

func TestInstallDisabledReturnsDelegate(t *testing.T) {
	delegate := setupRedisCache(t)
	sink := telemetry.NewMemorySink(nil)

	got, err := Install[string](delegate, WithEnabled(false), WithSink(sink))
	require.NoError(t, err)
	assert.Same(t, delegate, got)

	got, err = Install[string](delegate, WithConfig(core.RecorderConfig{Enabled: false}), WithSink(sink))
	require.NoError(t, err)
	assert.Same(t, delegate, got)

	_, _, err = got.Put(context.Background(), "key", "value")
	require.NoError(t, err)
	assert.Empty(t, sink.Events())
}

func TestInstallRequiresDelegate(t *testing.T) {
	_, err := Install[string](nil)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

func TestInstalledCacheUnwraps(t *testing.T) {
	delegate := setupRedisCache(t)
	traced, _ := installTraced(t, delegate)
	tc, ok := traced.(*TracedCache[string])
	require.True(t, ok)
	assert.Same(t, delegate, tc.Unwrap())
}

func TestSpanCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("cachetrace-test")

	delegate := setupRedisCache(t)
	sink := telemetry.NewMemorySink(nil)
	traced, err := Install[string](delegate, WithSink(sink))
	require.NoError(t, err)

	ctx, span := tracer.Start(context.Background(), "checkout")
	_, _, err = traced.Put(ctx, "key", "value")
	span.End()
	require.NoError(t, err)

	events := sink.Events()
	assertTriple(t, events, "Put")
	assert.Equal(t, span.SpanContext().TraceID().String(), events[0].TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), events[0].SpanID)

	// Without a span the ids are empty, not left over from the last call.
	sink.Reset()
	_, _, err = traced.Get(context.Background(), "key")
	require.NoError(t, err)
	for _, ev := range sink.Events() {
		assert.Empty(t, ev.TraceID)
		assert.Empty(t, ev.SpanID)
	}
}

func TestConcurrentInvocationsDoNotShareState(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("cachetrace-test")

	delegate := setupRedisCache(t)
	sink := telemetry.NewMemorySink(nil)
	traced, err := Install[string](delegate, WithSink(sink))
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, span := tracer.Start(context.Background(), fmt.Sprintf("worker-%d", i))
			defer span.End()
			if i%2 == 0 {
				_, _, _ = traced.Put(ctx, fmt.Sprintf("k%d", i), "v")
			} else {
				_, _ = traced.GetAllAsync(ctx, []string{"a", "b", "c"}).Await(ctx)
			}
		}(i)
	}
	wg.Wait()

	byTrace := make(map[string][]telemetry.Event)
	for _, ev := range sink.Events() {
		byTrace[ev.TraceID] = append(byTrace[ev.TraceID], ev)
	}
	require.Len(t, byTrace, workers)
	for trace, events := range byTrace {
		require.Len(t, events, 3, trace)
		method := events[0].Method
		for _, ev := range events {
			assert.Equal(t, method, ev.Method)
			assert.Equal(t, events[0].SpanID, ev.SpanID)
			if method == "GetAllAsync" {
				assert.Equal(t, 3, ev.ElementCount)
			}
		}
	}
}

// faultyCache overrides some operations of a real cache.
type faultyCache struct {
	cache.RemoteCache[string]

	putErr     error
	getPanic   interface{}
	pending    *cache.Future[cache.Lookup[string]]
	nilFuture  bool
	asyncPanic interface{}
}

func (f *faultyCache) Put(ctx context.Context, key, value string, opts ...cache.WriteOption) (string, bool, error) {
	if f.putErr != nil {
		return "", false, f.putErr
	}
	return f.RemoteCache.Put(ctx, key, value, opts...)
}

func (f *faultyCache) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getPanic != nil {
		panic(f.getPanic)
	}
	return f.RemoteCache.Get(ctx, key)
}

func (f *faultyCache) GetAsync(ctx context.Context, key string) *cache.Future[cache.Lookup[string]] {
	if f.asyncPanic != nil {
		panic(f.asyncPanic)
	}
	if f.nilFuture {
		return nil
	}
	if f.pending != nil {
		return f.pending
	}
	return f.RemoteCache.GetAsync(ctx, key)
}

func TestDelegateErrorIdentity(t *testing.T) {
	errBoom := errors.New("boom")
	traced, sink := installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), putErr: errBoom})

	_, _, err := traced.Put(context.Background(), "key", "value")
	assert.True(t, err == errBoom, "caller sees the delegate's error value")

	events := sink.Events()
	assertTriple(t, events, "Put")
	assert.Len(t, sink.ByKind(telemetry.KindEnd), 1)
	assert.Equal(t, telemetry.OutcomeError, events[2].Outcome)
	assert.Equal(t, "boom", events[2].Error)
}

func TestDelegatePanicIsRepanicked(t *testing.T) {
	type custom struct{ code int }
	value := &custom{code: 7}
	traced, sink := installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), getPanic: value})

	defer func() {
		r := recover()
		assert.Same(t, value, r)

		events := sink.Events()
		assertTriple(t, events, "Get")
		assert.Equal(t, telemetry.OutcomePanic, events[2].Outcome)
	}()
	_, _, _ = traced.Get(context.Background(), "key")
	t.Fatal("expected panic")
}

func TestAsyncOrdering(t *testing.T) {
	pending := cache.NewFuture[cache.Lookup[string]]()
	traced, sink := installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), pending: pending})
	ctx := context.Background()

	f := traced.GetAsync(ctx, "key")
	require.NotNil(t, f)
	assert.False(t, f.IsDone())

	events := sink.Events()
	require.Len(t, events, 1, "only Start before the delegate settles")
	assert.Equal(t, telemetry.KindStart, events[0].Kind)

	var endsSeenBySettle int
	f.OnComplete(func(cache.Lookup[string], error) {
		endsSeenBySettle = len(sink.ByKind(telemetry.KindEnd))
	})

	want := cache.Lookup[string]{Value: "value", Found: true}
	pending.Complete(want, nil)

	got, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, endsSeenBySettle, "End committed before the returned future settles")
	assertTriple(t, sink.Events(), "GetAsync")

	// A late completion attempt on the delegate's future changes nothing.
	assert.False(t, pending.Complete(cache.Lookup[string]{}, errors.New("late")))
	assert.Len(t, sink.Events(), 3)
}

func TestAsyncErrorPassesThrough(t *testing.T) {
	errTimeout := fmt.Errorf("remote: %w", core.ErrTimeout)
	pending := cache.NewFuture[cache.Lookup[string]]()
	traced, sink := installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), pending: pending})

	f := traced.GetAsync(context.Background(), "key")
	pending.Complete(cache.Lookup[string]{}, errTimeout)

	_, err := f.Await(context.Background())
	assert.True(t, err == errTimeout)
	end := sink.ByKind(telemetry.KindEnd)
	require.Len(t, end, 1)
	assert.Equal(t, telemetry.OutcomeError, end[0].Outcome)
}

func TestAsyncAlreadySettled(t *testing.T) {
	done := cache.Completed(cache.Lookup[string]{Value: "v", Found: true}, nil)
	traced, sink := installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), pending: done})

	f := traced.GetAsync(context.Background(), "key")
	assert.True(t, f.IsDone())
	assertTriple(t, sink.Events(), "GetAsync")
}

func TestAsyncNilFutureAndPanic(t *testing.T) {
	traced, sink := installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), nilFuture: true})
	assert.Nil(t, traced.GetAsync(context.Background(), "key"))
	events := sink.Events()
	assertTriple(t, events, "GetAsync")
	assert.Equal(t, ErrNilFuture.Error(), events[2].Error)

	traced, sink = installTraced(t, &faultyCache{RemoteCache: setupRedisCache(t), asyncPanic: "dial failed"})
	assert.PanicsWithValue(t, "dial failed", func() { traced.GetAsync(context.Background(), "key") })
	events = sink.Events()
	assertTriple(t, events, "GetAsync")
	assert.Equal(t, telemetry.OutcomePanic, events[2].Outcome)
}

// explodingSink fails in every possible way.
type explodingSink struct{}

func (explodingSink) WouldCommit(*telemetry.Event) bool { return true }

func (explodingSink) Commit(context.Context, *telemetry.Event) error { panic("sink exploded") }

func TestSinkFailureNeverReachesCaller(t *testing.T) {
	delegate := setupRedisCache(t)
	traced, err := Install[string](delegate, WithSink(explodingSink{}), WithLogger(&core.NoOpLogger{}))
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		_, _, err = traced.Put(ctx, "key", "value")
	})
	require.NoError(t, err)

	v, err := traced.GetAsync(ctx, "key").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "value", v.Value)

	// The same holds behind a guarded sink, which also counts the failures.
	guarded := telemetry.NewGuardedSink(explodingSink{}, telemetry.CircuitConfig{Enabled: true, MaxFailures: 100})
	traced, err = Install[string](delegate, WithSink(guarded))
	require.NoError(t, err)
	_, _, err = traced.Remove(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, int64(3), guarded.Health().Failed)
}

func TestRuntimeKindToggle(t *testing.T) {
	settings := telemetry.AllEnabled()
	sink := telemetry.NewMemorySink(settings)
	traced, err := Install[string](setupRedisCache(t), WithSink(sink))
	require.NoError(t, err)
	ctx := context.Background()

	settings.SetEnabled(telemetry.KindStart, false)
	settings.SetEnabled(telemetry.KindPeriod, false)
	_, _, err = traced.Put(ctx, "key", "value")
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.KindEnd, events[0].Kind)

	settings.SetEnabled(telemetry.KindStart, true)
	settings.SetEnabled(telemetry.KindPeriod, true)
	sink.Reset()
	_, _, err = traced.Get(ctx, "key")
	require.NoError(t, err)
	assertTriple(t, sink.Events(), "Get")
}
