package cachetrace

import (
	"context"

	"github.com/itsneelabh/cacheflight/cache"
)

// TracedCache forwards every call to a delegate RemoteCache. Observable
// operations are recorded through the interceptor; all other methods are
// plain pass-through. It holds no cache state of its own.
type TracedCache[V any] struct {
	delegate cache.RemoteCache[V]
	in       *interceptor
}

var _ cache.RemoteCache[string] = (*TracedCache[string])(nil)

// Unwrap returns the delegate.
func (t *TracedCache[V]) Unwrap() cache.RemoteCache[V] {
	return t.delegate
}

func (t *TracedCache[V]) Name() string { return t.delegate.Name() }

func (t *TracedCache[V]) ClusterName() string { return t.delegate.ClusterName() }

func (t *TracedCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return invoke2(ctx, t.in, opGet, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.Get(ctx, key)
	})
}

func (t *TracedCache[V]) GetOrDefault(ctx context.Context, key string, def V) (V, error) {
	return invoke1(ctx, t.in, opGetOrDefault, t.delegate, 0, func() (V, error) {
		return t.delegate.GetOrDefault(ctx, key, def)
	})
}

func (t *TracedCache[V]) GetWithMetadata(ctx context.Context, key string) (cache.MetadataValue[V], bool, error) {
	return invoke2(ctx, t.in, opGetWithMetadata, t.delegate, 0, func() (cache.MetadataValue[V], bool, error) {
		return t.delegate.GetWithMetadata(ctx, key)
	})
}

func (t *TracedCache[V]) GetAll(ctx context.Context, keys []string) (map[string]V, error) {
	return invoke1(ctx, t.in, opGetAll, t.delegate, len(keys), func() (map[string]V, error) {
		return t.delegate.GetAll(ctx, keys)
	})
}

func (t *TracedCache[V]) ContainsKey(ctx context.Context, key string) (bool, error) {
	return invoke1(ctx, t.in, opContainsKey, t.delegate, 0, func() (bool, error) {
		return t.delegate.ContainsKey(ctx, key)
	})
}

func (t *TracedCache[V]) ContainsValue(ctx context.Context, value V) (bool, error) {
	return invoke1(ctx, t.in, opContainsValue, t.delegate, 0, func() (bool, error) {
		return t.delegate.ContainsValue(ctx, value)
	})
}

func (t *TracedCache[V]) Put(ctx context.Context, key string, value V, opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opPut, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.Put(ctx, key, value, opts...)
	})
}

func (t *TracedCache[V]) PutIfAbsent(ctx context.Context, key string, value V, opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opPutIfAbsent, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.PutIfAbsent(ctx, key, value, opts...)
	})
}

func (t *TracedCache[V]) PutAll(ctx context.Context, entries map[string]V, opts ...cache.WriteOption) error {
	return invokeErr(ctx, t.in, opPutAll, t.delegate, len(entries), func() error {
		return t.delegate.PutAll(ctx, entries, opts...)
	})
}

func (t *TracedCache[V]) Replace(ctx context.Context, key string, value V, opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opReplace, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.Replace(ctx, key, value, opts...)
	})
}

func (t *TracedCache[V]) ReplaceIfEquals(ctx context.Context, key string, oldValue, newValue V, opts ...cache.WriteOption) (bool, error) {
	return invoke1(ctx, t.in, opReplaceIfEquals, t.delegate, 0, func() (bool, error) {
		return t.delegate.ReplaceIfEquals(ctx, key, oldValue, newValue, opts...)
	})
}

func (t *TracedCache[V]) ReplaceWithVersion(ctx context.Context, key string, value V, version int64, opts ...cache.WriteOption) (bool, error) {
	return invoke1(ctx, t.in, opReplaceWithVersion, t.delegate, 0, func() (bool, error) {
		return t.delegate.ReplaceWithVersion(ctx, key, value, version, opts...)
	})
}

func (t *TracedCache[V]) ReplaceAll(ctx context.Context, fn func(key string, value V) V) error {
	return invokeErr(ctx, t.in, opReplaceAll, t.delegate, 0, func() error {
		return t.delegate.ReplaceAll(ctx, fn)
	})
}

func (t *TracedCache[V]) Remove(ctx context.Context, key string) (V, bool, error) {
	return invoke2(ctx, t.in, opRemove, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.Remove(ctx, key)
	})
}

func (t *TracedCache[V]) RemoveIfEquals(ctx context.Context, key string, value V) (bool, error) {
	return invoke1(ctx, t.in, opRemoveIfEquals, t.delegate, 0, func() (bool, error) {
		return t.delegate.RemoveIfEquals(ctx, key, value)
	})
}

func (t *TracedCache[V]) RemoveWithVersion(ctx context.Context, key string, version int64) (bool, error) {
	return invoke1(ctx, t.in, opRemoveWithVersion, t.delegate, 0, func() (bool, error) {
		return t.delegate.RemoveWithVersion(ctx, key, version)
	})
}

func (t *TracedCache[V]) Compute(ctx context.Context, key string, fn cache.ComputeFunc[V], opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opCompute, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.Compute(ctx, key, fn, opts...)
	})
}

func (t *TracedCache[V]) ComputeIfAbsent(ctx context.Context, key string, fn func(key string) (V, bool), opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opComputeIfAbsent, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.ComputeIfAbsent(ctx, key, fn, opts...)
	})
}

func (t *TracedCache[V]) ComputeIfPresent(ctx context.Context, key string, fn func(key string, current V) (V, bool), opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opComputeIfPresent, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.ComputeIfPresent(ctx, key, fn, opts...)
	})
}

func (t *TracedCache[V]) Merge(ctx context.Context, key string, value V, fn cache.MergeFunc[V], opts ...cache.WriteOption) (V, bool, error) {
	return invoke2(ctx, t.in, opMerge, t.delegate, 0, func() (V, bool, error) {
		return t.delegate.Merge(ctx, key, value, fn, opts...)
	})
}

func (t *TracedCache[V]) Size(ctx context.Context) (int64, error) {
	return invoke1(ctx, t.in, opSize, t.delegate, 0, func() (int64, error) {
		return t.delegate.Size(ctx)
	})
}

func (t *TracedCache[V]) IsEmpty(ctx context.Context) (bool, error) {
	return invoke1(ctx, t.in, opIsEmpty, t.delegate, 0, func() (bool, error) {
		return t.delegate.IsEmpty(ctx)
	})
}

func (t *TracedCache[V]) GetAsync(ctx context.Context, key string) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opGetAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.GetAsync(ctx, key)
	})
}

func (t *TracedCache[V]) GetWithMetadataAsync(ctx context.Context, key string) *cache.Future[cache.Lookup[cache.MetadataValue[V]]] {
	return invokeAsync(ctx, t.in, opGetWithMetadataAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[cache.MetadataValue[V]]] {
		return t.delegate.GetWithMetadataAsync(ctx, key)
	})
}

func (t *TracedCache[V]) GetAllAsync(ctx context.Context, keys []string) *cache.Future[map[string]V] {
	return invokeAsync(ctx, t.in, opGetAllAsync, t.delegate, len(keys), func() *cache.Future[map[string]V] {
		return t.delegate.GetAllAsync(ctx, keys)
	})
}

func (t *TracedCache[V]) ContainsKeyAsync(ctx context.Context, key string) *cache.Future[bool] {
	return invokeAsync(ctx, t.in, opContainsKeyAsync, t.delegate, 0, func() *cache.Future[bool] {
		return t.delegate.ContainsKeyAsync(ctx, key)
	})
}

func (t *TracedCache[V]) PutAsync(ctx context.Context, key string, value V, opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opPutAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.PutAsync(ctx, key, value, opts...)
	})
}

func (t *TracedCache[V]) PutIfAbsentAsync(ctx context.Context, key string, value V, opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opPutIfAbsentAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.PutIfAbsentAsync(ctx, key, value, opts...)
	})
}

func (t *TracedCache[V]) PutAllAsync(ctx context.Context, entries map[string]V, opts ...cache.WriteOption) *cache.Future[struct{}] {
	return invokeAsync(ctx, t.in, opPutAllAsync, t.delegate, len(entries), func() *cache.Future[struct{}] {
		return t.delegate.PutAllAsync(ctx, entries, opts...)
	})
}

func (t *TracedCache[V]) ReplaceAsync(ctx context.Context, key string, value V, opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opReplaceAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.ReplaceAsync(ctx, key, value, opts...)
	})
}

func (t *TracedCache[V]) ReplaceIfEqualsAsync(ctx context.Context, key string, oldValue, newValue V, opts ...cache.WriteOption) *cache.Future[bool] {
	return invokeAsync(ctx, t.in, opReplaceIfEqualsAsync, t.delegate, 0, func() *cache.Future[bool] {
		return t.delegate.ReplaceIfEqualsAsync(ctx, key, oldValue, newValue, opts...)
	})
}

func (t *TracedCache[V]) ReplaceWithVersionAsync(ctx context.Context, key string, value V, version int64, opts ...cache.WriteOption) *cache.Future[bool] {
	return invokeAsync(ctx, t.in, opReplaceWithVersionAsync, t.delegate, 0, func() *cache.Future[bool] {
		return t.delegate.ReplaceWithVersionAsync(ctx, key, value, version, opts...)
	})
}

func (t *TracedCache[V]) RemoveAsync(ctx context.Context, key string) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opRemoveAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.RemoveAsync(ctx, key)
	})
}

func (t *TracedCache[V]) RemoveIfEqualsAsync(ctx context.Context, key string, value V) *cache.Future[bool] {
	return invokeAsync(ctx, t.in, opRemoveIfEqualsAsync, t.delegate, 0, func() *cache.Future[bool] {
		return t.delegate.RemoveIfEqualsAsync(ctx, key, value)
	})
}

func (t *TracedCache[V]) RemoveWithVersionAsync(ctx context.Context, key string, version int64) *cache.Future[bool] {
	return invokeAsync(ctx, t.in, opRemoveWithVersionAsync, t.delegate, 0, func() *cache.Future[bool] {
		return t.delegate.RemoveWithVersionAsync(ctx, key, version)
	})
}

func (t *TracedCache[V]) ComputeAsync(ctx context.Context, key string, fn cache.ComputeFunc[V], opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opComputeAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.ComputeAsync(ctx, key, fn, opts...)
	})
}

func (t *TracedCache[V]) ComputeIfAbsentAsync(ctx context.Context, key string, fn func(key string) (V, bool), opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opComputeIfAbsentAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.ComputeIfAbsentAsync(ctx, key, fn, opts...)
	})
}

func (t *TracedCache[V]) ComputeIfPresentAsync(ctx context.Context, key string, fn func(key string, current V) (V, bool), opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opComputeIfPresentAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.ComputeIfPresentAsync(ctx, key, fn, opts...)
	})
}

func (t *TracedCache[V]) MergeAsync(ctx context.Context, key string, value V, fn cache.MergeFunc[V], opts ...cache.WriteOption) *cache.Future[cache.Lookup[V]] {
	return invokeAsync(ctx, t.in, opMergeAsync, t.delegate, 0, func() *cache.Future[cache.Lookup[V]] {
		return t.delegate.MergeAsync(ctx, key, value, fn, opts...)
	})
}

func (t *TracedCache[V]) SizeAsync(ctx context.Context) *cache.Future[int64] {
	return invokeAsync(ctx, t.in, opSizeAsync, t.delegate, 0, func() *cache.Future[int64] {
		return t.delegate.SizeAsync(ctx)
	})
}

// Untagged methods.

func (t *TracedCache[V]) Keys(ctx context.Context) ([]string, error) { return t.delegate.Keys(ctx) }

func (t *TracedCache[V]) Values(ctx context.Context) ([]V, error) { return t.delegate.Values(ctx) }

func (t *TracedCache[V]) Entries(ctx context.Context) (map[string]V, error) {
	return t.delegate.Entries(ctx)
}

func (t *TracedCache[V]) Clear(ctx context.Context) error { return t.delegate.Clear(ctx) }

func (t *TracedCache[V]) ClearAsync(ctx context.Context) *cache.Future[struct{}] {
	return t.delegate.ClearAsync(ctx)
}

func (t *TracedCache[V]) Ping(ctx context.Context) error { return t.delegate.Ping(ctx) }

func (t *TracedCache[V]) Statistics() cache.Statistics { return t.delegate.Statistics() }

func (t *TracedCache[V]) Close() error { return t.delegate.Close() }
