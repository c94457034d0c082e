// Package cache defines the client surface of a networked key-value cache and
// provides a Redis-backed implementation of it.
//
// RemoteCache is the contract that instrumentation wraps: every read, write,
// conditional update and iteration a caller can perform goes through it.
// Asynchronous variants return a *Future that settles when the remote call
// completes.
//
// Entries carry server-assigned versions and optional expiry:
//   - lifespan: the entry is removed once this much time passed since the write
//   - max idle: the entry is removed once it was not read for this long
//
// Absence is never an error. Lookups report it through a found flag.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheClosed is returned by every operation after Close.
	ErrCacheClosed = errors.New("cache closed")

	// ErrConcurrentModification is returned when a conditional update kept
	// losing the optimistic lock after all retries.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Lookup pairs a value with whether it was present.
type Lookup[V any] struct {
	Value V
	Found bool
}

// MetadataValue is a value together with its server-side metadata.
type MetadataValue[V any] struct {
	Value    V
	Version  int64
	Created  time.Time
	LastUsed time.Time
	Lifespan time.Duration // zero means immortal
	MaxIdle  time.Duration // zero means no idle expiry
}

// Statistics are client-side counters of a RemoteCache.
type Statistics struct {
	Hits    int64
	Misses  int64
	Stores  int64
	Removes int64
	Since   time.Time
}

// Pending is implemented by handles of operations that complete later.
type Pending interface {
	Done() <-chan struct{}
}

// ComputeFunc maps the current mapping of key to a new one. Returning
// keep=false removes the entry.
type ComputeFunc[V any] func(key string, current V, found bool) (value V, keep bool)

// MergeFunc combines an existing value with the supplied one. Returning
// keep=false removes the entry.
type MergeFunc[V any] func(current, value V) (merged V, keep bool)

// RemoteCache is the full capability surface of a remote cache client.
type RemoteCache[V any] interface {
	// Name returns the cache name.
	Name() string
	// ClusterName returns the name of the cluster the client is connected to.
	ClusterName() string

	Get(ctx context.Context, key string) (V, bool, error)
	GetOrDefault(ctx context.Context, key string, def V) (V, error)
	GetWithMetadata(ctx context.Context, key string) (MetadataValue[V], bool, error)
	GetAll(ctx context.Context, keys []string) (map[string]V, error)
	ContainsKey(ctx context.Context, key string) (bool, error)
	ContainsValue(ctx context.Context, value V) (bool, error)

	// Put stores value and returns the previous value, if any.
	Put(ctx context.Context, key string, value V, opts ...WriteOption) (V, bool, error)
	// PutIfAbsent stores value only when key is absent and returns the
	// existing value otherwise.
	PutIfAbsent(ctx context.Context, key string, value V, opts ...WriteOption) (V, bool, error)
	PutAll(ctx context.Context, entries map[string]V, opts ...WriteOption) error
	// Replace stores value only when key is present and returns the
	// previous value.
	Replace(ctx context.Context, key string, value V, opts ...WriteOption) (V, bool, error)
	ReplaceIfEquals(ctx context.Context, key string, oldValue, newValue V, opts ...WriteOption) (bool, error)
	ReplaceWithVersion(ctx context.Context, key string, value V, version int64, opts ...WriteOption) (bool, error)
	ReplaceAll(ctx context.Context, fn func(key string, value V) V) error
	Remove(ctx context.Context, key string) (V, bool, error)
	RemoveIfEquals(ctx context.Context, key string, value V) (bool, error)
	RemoveWithVersion(ctx context.Context, key string, version int64) (bool, error)

	// Compute, ComputeIfAbsent, ComputeIfPresent and Merge return the value
	// mapped after the call and whether one is mapped.
	Compute(ctx context.Context, key string, fn ComputeFunc[V], opts ...WriteOption) (V, bool, error)
	ComputeIfAbsent(ctx context.Context, key string, fn func(key string) (V, bool), opts ...WriteOption) (V, bool, error)
	ComputeIfPresent(ctx context.Context, key string, fn func(key string, current V) (V, bool), opts ...WriteOption) (V, bool, error)
	Merge(ctx context.Context, key string, value V, fn MergeFunc[V], opts ...WriteOption) (V, bool, error)

	Size(ctx context.Context) (int64, error)
	IsEmpty(ctx context.Context) (bool, error)

	GetAsync(ctx context.Context, key string) *Future[Lookup[V]]
	GetWithMetadataAsync(ctx context.Context, key string) *Future[Lookup[MetadataValue[V]]]
	GetAllAsync(ctx context.Context, keys []string) *Future[map[string]V]
	ContainsKeyAsync(ctx context.Context, key string) *Future[bool]
	PutAsync(ctx context.Context, key string, value V, opts ...WriteOption) *Future[Lookup[V]]
	PutIfAbsentAsync(ctx context.Context, key string, value V, opts ...WriteOption) *Future[Lookup[V]]
	PutAllAsync(ctx context.Context, entries map[string]V, opts ...WriteOption) *Future[struct{}]
	ReplaceAsync(ctx context.Context, key string, value V, opts ...WriteOption) *Future[Lookup[V]]
	ReplaceIfEqualsAsync(ctx context.Context, key string, oldValue, newValue V, opts ...WriteOption) *Future[bool]
	ReplaceWithVersionAsync(ctx context.Context, key string, value V, version int64, opts ...WriteOption) *Future[bool]
	RemoveAsync(ctx context.Context, key string) *Future[Lookup[V]]
	RemoveIfEqualsAsync(ctx context.Context, key string, value V) *Future[bool]
	RemoveWithVersionAsync(ctx context.Context, key string, version int64) *Future[bool]
	ComputeAsync(ctx context.Context, key string, fn ComputeFunc[V], opts ...WriteOption) *Future[Lookup[V]]
	ComputeIfAbsentAsync(ctx context.Context, key string, fn func(key string) (V, bool), opts ...WriteOption) *Future[Lookup[V]]
	ComputeIfPresentAsync(ctx context.Context, key string, fn func(key string, current V) (V, bool), opts ...WriteOption) *Future[Lookup[V]]
	MergeAsync(ctx context.Context, key string, value V, fn MergeFunc[V], opts ...WriteOption) *Future[Lookup[V]]
	SizeAsync(ctx context.Context) *Future[int64]

	Keys(ctx context.Context) ([]string, error)
	Values(ctx context.Context) ([]V, error)
	Entries(ctx context.Context) (map[string]V, error)
	Clear(ctx context.Context) error
	ClearAsync(ctx context.Context) *Future[struct{}]

	Ping(ctx context.Context) error
	Statistics() Statistics
	Close() error
}
