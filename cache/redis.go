// Package cache provides the Redis-backed RemoteCache.
// This file implements RedisCache on top of go-redis. Every entry is a hash
// holding the encoded value and its metadata:
//
//	<prefix>:<cache>:e:<key>  v=<value> ver=<version> c=<created ms>
//	                          lu=<last used ms> ls=<lifespan ms> mi=<max idle ms>
//
// Versions come from a per-cache counter (<prefix>:<cache>:version), so they
// increase monotonically across writes. Lifespan maps to a Redis PEXPIRE;
// max idle is emulated by refreshing the expiry on every read. Conditional
// updates use WATCH/MULTI and are retried when another client wins the race.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/itsneelabh/cacheflight/core"
)

const (
	fieldValue    = "v"
	fieldVersion  = "ver"
	fieldCreated  = "c"
	fieldLastUsed = "lu"
	fieldLifespan = "ls"
	fieldMaxIdle  = "mi"

	scanCount         = 256
	defaultMaxRetries = 16
)

// RedisCacheOptions configures a RedisCache.
type RedisCacheOptions struct {
	Name            string
	ClusterName     string // defaults to the server address
	DefaultLifespan time.Duration
	DefaultMaxIdle  time.Duration
	MaxRetries      int // attempts for conditional updates
	Logger          core.Logger
	Now             func() time.Time
}

// RedisCache is a RemoteCache stored in Redis.
type RedisCache[V any] struct {
	id          string
	client      *core.RedisClient
	ownsClient  bool
	rdb         *redis.Client
	codec       Codec[V]
	name        string
	clusterName string
	defLifespan time.Duration
	defMaxIdle  time.Duration
	maxRetries  int
	logger      core.ContextLogger
	now         func() time.Time

	closed  atomic.Bool
	hits    atomic.Int64
	misses  atomic.Int64
	stores  atomic.Int64
	removes atomic.Int64
	since   time.Time
}

var _ RemoteCache[string] = (*RedisCache[string])(nil)

// NewRedisCache creates a cache named opts.Name on an existing connection.
// The connection stays owned by the caller.
func NewRedisCache[V any](client *core.RedisClient, codec Codec[V], opts RedisCacheOptions) (*RedisCache[V], error) {
	if client == nil {
		return nil, &core.FrameworkError{
			Op:      "cache.NewRedisCache",
			Kind:    "config",
			Message: "redis client is required",
			Err:     core.ErrMissingConfiguration,
		}
	}
	if codec == nil {
		return nil, &core.FrameworkError{
			Op:      "cache.NewRedisCache",
			Kind:    "config",
			Message: "codec is required",
			Err:     core.ErrMissingConfiguration,
		}
	}
	if opts.Name == "" || strings.ContainsAny(opts.Name, "*?[]\\") {
		return nil, &core.FrameworkError{
			Op:      "cache.NewRedisCache",
			Kind:    "config",
			Message: fmt.Sprintf("invalid cache name %q", opts.Name),
			Err:     core.ErrInvalidConfiguration,
		}
	}

	c := &RedisCache[V]{
		id:          uuid.NewString(),
		client:      client,
		rdb:         client.Client(),
		codec:       codec,
		name:        opts.Name,
		clusterName: opts.ClusterName,
		defLifespan: opts.DefaultLifespan,
		defMaxIdle:  opts.DefaultMaxIdle,
		maxRetries:  opts.MaxRetries,
		logger:      core.WithContext(opts.Logger),
		now:         opts.Now,
	}
	if c.clusterName == "" {
		c.clusterName = c.rdb.Options().Addr
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.since = c.now()

	c.logger.Info("Remote cache ready", map[string]interface{}{
		"cache":       c.name,
		"cluster":     c.clusterName,
		"instance_id": c.id,
		"db":          client.GetDB(),
	})
	return c, nil
}

// OpenRedisCache connects to Redis using cfg and returns a cache that owns the
// connection. Closing the cache closes the connection.
func OpenRedisCache[V any](cfg *core.Config, codec Codec[V], logger core.Logger) (*RedisCache[V], error) {
	client, err := core.NewRedisClient(core.RedisOptionsFromConfig(cfg.Redis, cfg.Cache.KeyPrefix, logger))
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", cfg.Cache.Name, err)
	}
	c, err := NewRedisCache(client, codec, RedisCacheOptions{
		Name:            cfg.Cache.Name,
		ClusterName:     cfg.Redis.ClusterName,
		DefaultLifespan: cfg.Cache.DefaultLifespan,
		DefaultMaxIdle:  cfg.Cache.DefaultMaxIdle,
		MaxRetries:      cfg.Cache.MaxRetries,
		Logger:          logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	c.ownsClient = true
	return c, nil
}

// DialRedisCache is OpenRedisCache retried with backoff while the server is
// unreachable. Configuration errors fail on the first attempt.
func DialRedisCache[V any](ctx context.Context, cfg *core.Config, codec Codec[V], logger core.Logger, retry *core.RetryConfig) (*RedisCache[V], error) {
	var c *RedisCache[V]
	attempt := 0
	err := core.Retry(ctx, retry, func() error {
		attempt++
		var err error
		c, err = OpenRedisCache(cfg, codec, logger)
		if err != nil && core.IsRetryable(err) {
			core.WithContext(logger).WarnWithContext(ctx, "Remote cache unreachable", map[string]interface{}{
				"cache":   cfg.Cache.Name,
				"attempt": attempt,
				"error":   err,
			})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RedisCache[V]) Name() string { return c.name }

func (c *RedisCache[V]) ClusterName() string { return c.clusterName }

// --- keys and entries ---

func (c *RedisCache[V]) entryPrefix() string {
	return c.client.FormatKey(c.name + ":e:")
}

func (c *RedisCache[V]) entryKey(key string) string {
	return c.entryPrefix() + key
}

func (c *RedisCache[V]) versionKey() string {
	return c.client.FormatKey(c.name + ":version")
}

type entry struct {
	raw      string
	version  int64
	created  int64
	lastUsed int64
	lifespan int64
	maxIdle  int64
}

func parseEntry(m map[string]string) (entry, error) {
	e := entry{raw: m[fieldValue]}
	if _, ok := m[fieldValue]; !ok {
		return e, fmt.Errorf("entry without value field")
	}
	for field, dst := range map[string]*int64{
		fieldVersion:  &e.version,
		fieldCreated:  &e.created,
		fieldLastUsed: &e.lastUsed,
		fieldLifespan: &e.lifespan,
		fieldMaxIdle:  &e.maxIdle,
	} {
		s, ok := m[field]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return e, fmt.Errorf("entry field %s: %w", field, err)
		}
		*dst = n
	}
	return e, nil
}

func (c *RedisCache[V]) metadata(e entry, value V) MetadataValue[V] {
	return MetadataValue[V]{
		Value:    value,
		Version:  e.version,
		Created:  time.UnixMilli(e.created),
		LastUsed: time.UnixMilli(e.lastUsed),
		Lifespan: time.Duration(e.lifespan) * time.Millisecond,
		MaxIdle:  time.Duration(e.maxIdle) * time.Millisecond,
	}
}

func (c *RedisCache[V]) checkOpen(op string) error {
	if c.closed.Load() {
		return &core.FrameworkError{Op: "RedisCache." + op, Kind: "cache", ID: c.name, Err: ErrCacheClosed}
	}
	return nil
}

func (c *RedisCache[V]) wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var fe *core.FrameworkError
	if errors.As(err, &fe) {
		return err
	}
	return &core.FrameworkError{Op: "RedisCache." + op, Kind: "cache", ID: key, Err: err}
}

func (c *RedisCache[V]) encode(op, key string, value V) (string, error) {
	raw, err := c.codec.Encode(value)
	if err != nil {
		return "", c.wrapErr(op, key, err)
	}
	return raw, nil
}

func (c *RedisCache[V]) decode(op, key, raw string) (V, error) {
	v, err := c.codec.Decode(raw)
	if err != nil {
		return v, c.wrapErr(op, key, err)
	}
	return v, nil
}

// decodeFound decodes e when found, returning the zero value otherwise.
func (c *RedisCache[V]) decodeFound(op, key string, e entry, found bool) (V, bool, error) {
	if !found {
		var zero V
		return zero, false, nil
	}
	v, err := c.decode(op, key, e.raw)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (c *RedisCache[V]) writeOptions(opts []WriteOption) writeOptions {
	return resolveWriteOptions(c.defLifespan, c.defMaxIdle, opts)
}

// writeEntry queues the commands storing raw under k.
func (c *RedisCache[V]) writeEntry(ctx context.Context, p redis.Pipeliner, k, raw string, version int64, wo writeOptions) {
	now := c.now().UnixMilli()
	p.HSet(ctx, k,
		fieldValue, raw,
		fieldVersion, version,
		fieldCreated, now,
		fieldLastUsed, now,
		fieldLifespan, wo.lifespan.Milliseconds(),
		fieldMaxIdle, wo.maxIdle.Milliseconds(),
	)
	if ttl := expiryTTL(wo.lifespan, wo.maxIdle); ttl > 0 {
		p.PExpire(ctx, k, ttl)
	} else {
		p.Persist(ctx, k)
	}
}

// touch refreshes the idle expiry of an entry that was just read.
func (c *RedisCache[V]) touch(ctx context.Context, k string, e entry) {
	now := c.now().UnixMilli()
	ttl := e.maxIdle
	if e.lifespan > 0 {
		if remaining := e.created + e.lifespan - now; remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, fieldLastUsed, now)
		p.PExpire(ctx, k, time.Duration(ttl)*time.Millisecond)
		return nil
	})
	if err != nil {
		c.logger.WarnWithContext(ctx, "Failed to refresh idle expiry", map[string]interface{}{
			"cache":      c.name,
			"key":        k,
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
	}
}

// read fetches one entry, refreshing its idle expiry and counting the lookup.
func (c *RedisCache[V]) read(ctx context.Context, op, key string) (entry, bool, error) {
	if err := c.checkOpen(op); err != nil {
		return entry{}, false, err
	}
	k := c.entryKey(key)
	m, err := c.rdb.HGetAll(ctx, k).Result()
	if err != nil {
		return entry{}, false, c.wrapErr(op, key, err)
	}
	if len(m) == 0 {
		c.misses.Add(1)
		return entry{}, false, nil
	}
	e, err := parseEntry(m)
	if err != nil {
		return entry{}, false, c.wrapErr(op, key, err)
	}
	c.hits.Add(1)
	if e.maxIdle > 0 {
		c.touch(ctx, k, e)
	}
	return e, true, nil
}

type action int

const (
	keepEntry action = iota
	storeEntry
	deleteEntry
)

type change struct {
	act  action
	raw  string
	opts writeOptions
}

// update runs fn against the current entry under an optimistic lock and
// applies the change it returns. fn may run more than once when another
// writer races the update. It returns the entry seen by the applied attempt.
func (c *RedisCache[V]) update(ctx context.Context, op, key string, fn func(cur entry, found bool) (change, error)) (entry, bool, change, error) {
	if err := c.checkOpen(op); err != nil {
		return entry{}, false, change{}, err
	}
	k := c.entryKey(key)

	var (
		prev    entry
		found   bool
		applied change
		err     error
	)
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			m, err := tx.HGetAll(ctx, k).Result()
			if err != nil {
				return err
			}
			prev, found = entry{}, false
			if len(m) > 0 {
				if prev, err = parseEntry(m); err != nil {
					return err
				}
				found = true
			}
			if applied, err = fn(prev, found); err != nil {
				return err
			}

			switch applied.act {
			case storeEntry:
				version, err := c.rdb.Incr(ctx, c.versionKey()).Result()
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
					c.writeEntry(ctx, p, k, applied.raw, version, applied.opts)
					return nil
				})
				return err
			case deleteEntry:
				_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
					p.Del(ctx, k)
					return nil
				})
				return err
			default:
				return nil
			}
		}, k)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		c.logger.DebugWithContext(ctx, "Conditional update lost the race, retrying", map[string]interface{}{
			"cache":   c.name,
			"op":      op,
			"attempt": attempt + 1,
		})
	}
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrConcurrentModification
	}
	if err != nil {
		return entry{}, false, change{}, c.wrapErr(op, key, err)
	}

	switch applied.act {
	case storeEntry:
		c.stores.Add(1)
	case deleteEntry:
		c.removes.Add(1)
	}
	return prev, found, applied, nil
}

// scanKeys returns the Redis keys of every entry of this cache.
func (c *RedisCache[V]) scanKeys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	iter := c.rdb.Scan(ctx, 0, escapeGlob(c.entryPrefix())+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, iter.Err()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fetch loads many entries in one round trip.
func (c *RedisCache[V]) fetch(ctx context.Context, op string, keys []string, count bool) (map[string]V, error) {
	out := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cmds := make([]*redis.StringStringMapCmd, len(keys))
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.HGetAll(ctx, c.entryKey(key))
		}
		return nil
	})
	if err != nil {
		return nil, c.wrapErr(op, "", err)
	}
	for i, key := range keys {
		m := cmds[i].Val()
		if len(m) == 0 {
			if count {
				c.misses.Add(1)
			}
			continue
		}
		e, err := parseEntry(m)
		if err != nil {
			return nil, c.wrapErr(op, key, err)
		}
		v, err := c.decode(op, key, e.raw)
		if err != nil {
			return nil, err
		}
		out[key] = v
		if count {
			c.hits.Add(1)
			if e.maxIdle > 0 {
				c.touch(ctx, c.entryKey(key), e)
			}
		}
	}
	return out, nil
}

// --- reads ---

func (c *RedisCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	e, found, err := c.read(ctx, "Get", key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return c.decodeFound("Get", key, e, found)
}

func (c *RedisCache[V]) GetOrDefault(ctx context.Context, key string, def V) (V, error) {
	v, found, err := c.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

func (c *RedisCache[V]) GetWithMetadata(ctx context.Context, key string) (MetadataValue[V], bool, error) {
	e, found, err := c.read(ctx, "GetWithMetadata", key)
	if err != nil || !found {
		return MetadataValue[V]{}, false, err
	}
	v, err := c.decode("GetWithMetadata", key, e.raw)
	if err != nil {
		return MetadataValue[V]{}, false, err
	}
	return c.metadata(e, v), true, nil
}

func (c *RedisCache[V]) GetAll(ctx context.Context, keys []string) (map[string]V, error) {
	if err := c.checkOpen("GetAll"); err != nil {
		return nil, err
	}
	return c.fetch(ctx, "GetAll", keys, true)
}

func (c *RedisCache[V]) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := c.checkOpen("ContainsKey"); err != nil {
		return false, err
	}
	n, err := c.rdb.Exists(ctx, c.entryKey(key)).Result()
	if err != nil {
		return false, c.wrapErr("ContainsKey", key, err)
	}
	return n > 0, nil
}

func (c *RedisCache[V]) ContainsValue(ctx context.Context, value V) (bool, error) {
	if err := c.checkOpen("ContainsValue"); err != nil {
		return false, err
	}
	raw, err := c.encode("ContainsValue", "", value)
	if err != nil {
		return false, err
	}
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return false, c.wrapErr("ContainsValue", "", err)
	}
	for len(keys) > 0 {
		batch := keys
		if len(batch) > scanCount {
			batch = batch[:scanCount]
		}
		keys = keys[len(batch):]

		cmds := make([]*redis.StringCmd, len(batch))
		_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, k := range batch {
				cmds[i] = p.HGet(ctx, k, fieldValue)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return false, c.wrapErr("ContainsValue", "", err)
		}
		for _, cmd := range cmds {
			if cmd.Err() == nil && cmd.Val() == raw {
				return true, nil
			}
		}
	}
	return false, nil
}

// --- writes ---

func (c *RedisCache[V]) Put(ctx context.Context, key string, value V, opts ...WriteOption) (V, bool, error) {
	raw, err := c.encode("Put", key, value)
	if err != nil {
		var zero V
		return zero, false, err
	}
	wo := c.writeOptions(opts)
	prev, found, _, err := c.update(ctx, "Put", key, func(entry, bool) (change, error) {
		return change{act: storeEntry, raw: raw, opts: wo}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return c.decodeFound("Put", key, prev, found)
}

func (c *RedisCache[V]) PutIfAbsent(ctx context.Context, key string, value V, opts ...WriteOption) (V, bool, error) {
	raw, err := c.encode("PutIfAbsent", key, value)
	if err != nil {
		var zero V
		return zero, false, err
	}
	wo := c.writeOptions(opts)
	prev, found, _, err := c.update(ctx, "PutIfAbsent", key, func(_ entry, found bool) (change, error) {
		if found {
			return change{act: keepEntry}, nil
		}
		return change{act: storeEntry, raw: raw, opts: wo}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return c.decodeFound("PutIfAbsent", key, prev, found)
}

func (c *RedisCache[V]) PutAll(ctx context.Context, entries map[string]V, opts ...WriteOption) error {
	if err := c.checkOpen("PutAll"); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	raws := make(map[string]string, len(entries))
	for key, value := range entries {
		raw, err := c.encode("PutAll", key, value)
		if err != nil {
			return err
		}
		raws[key] = raw
	}
	wo := c.writeOptions(opts)

	last, err := c.rdb.IncrBy(ctx, c.versionKey(), int64(len(raws))).Result()
	if err != nil {
		return c.wrapErr("PutAll", "", err)
	}
	version := last - int64(len(raws))
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for key, raw := range raws {
			version++
			c.writeEntry(ctx, p, c.entryKey(key), raw, version, wo)
		}
		return nil
	})
	if err != nil {
		return c.wrapErr("PutAll", "", err)
	}
	c.stores.Add(int64(len(raws)))
	return nil
}

func (c *RedisCache[V]) Replace(ctx context.Context, key string, value V, opts ...WriteOption) (V, bool, error) {
	raw, err := c.encode("Replace", key, value)
	if err != nil {
		var zero V
		return zero, false, err
	}
	wo := c.writeOptions(opts)
	prev, found, _, err := c.update(ctx, "Replace", key, func(_ entry, found bool) (change, error) {
		if !found {
			return change{act: keepEntry}, nil
		}
		return change{act: storeEntry, raw: raw, opts: wo}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return c.decodeFound("Replace", key, prev, found)
}

func (c *RedisCache[V]) ReplaceIfEquals(ctx context.Context, key string, oldValue, newValue V, opts ...WriteOption) (bool, error) {
	oldRaw, err := c.encode("ReplaceIfEquals", key, oldValue)
	if err != nil {
		return false, err
	}
	newRaw, err := c.encode("ReplaceIfEquals", key, newValue)
	if err != nil {
		return false, err
	}
	wo := c.writeOptions(opts)
	_, _, applied, err := c.update(ctx, "ReplaceIfEquals", key, func(cur entry, found bool) (change, error) {
		if !found || cur.raw != oldRaw {
			return change{act: keepEntry}, nil
		}
		return change{act: storeEntry, raw: newRaw, opts: wo}, nil
	})
	return applied.act == storeEntry, err
}

func (c *RedisCache[V]) ReplaceWithVersion(ctx context.Context, key string, value V, version int64, opts ...WriteOption) (bool, error) {
	raw, err := c.encode("ReplaceWithVersion", key, value)
	if err != nil {
		return false, err
	}
	wo := c.writeOptions(opts)
	_, _, applied, err := c.update(ctx, "ReplaceWithVersion", key, func(cur entry, found bool) (change, error) {
		if !found || cur.version != version {
			return change{act: keepEntry}, nil
		}
		return change{act: storeEntry, raw: raw, opts: wo}, nil
	})
	return applied.act == storeEntry, err
}

// ReplaceAll rewrites every entry with fn, keeping each entry's expiry
// settings. Entries removed concurrently are skipped.
func (c *RedisCache[V]) ReplaceAll(ctx context.Context, fn func(key string, value V) V) error {
	keys, err := c.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		_, _, _, err := c.update(ctx, "ReplaceAll", key, func(cur entry, found bool) (change, error) {
			if !found {
				return change{act: keepEntry}, nil
			}
			v, err := c.decode("ReplaceAll", key, cur.raw)
			if err != nil {
				return change{}, err
			}
			raw, err := c.encode("ReplaceAll", key, fn(key, v))
			if err != nil {
				return change{}, err
			}
			return change{act: storeEntry, raw: raw, opts: writeOptions{
				lifespan: time.Duration(cur.lifespan) * time.Millisecond,
				maxIdle:  time.Duration(cur.maxIdle) * time.Millisecond,
			}}, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *RedisCache[V]) Remove(ctx context.Context, key string) (V, bool, error) {
	prev, found, _, err := c.update(ctx, "Remove", key, func(_ entry, found bool) (change, error) {
		if !found {
			return change{act: keepEntry}, nil
		}
		return change{act: deleteEntry}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return c.decodeFound("Remove", key, prev, found)
}

func (c *RedisCache[V]) RemoveIfEquals(ctx context.Context, key string, value V) (bool, error) {
	raw, err := c.encode("RemoveIfEquals", key, value)
	if err != nil {
		return false, err
	}
	_, _, applied, err := c.update(ctx, "RemoveIfEquals", key, func(cur entry, found bool) (change, error) {
		if !found || cur.raw != raw {
			return change{act: keepEntry}, nil
		}
		return change{act: deleteEntry}, nil
	})
	return applied.act == deleteEntry, err
}

func (c *RedisCache[V]) RemoveWithVersion(ctx context.Context, key string, version int64) (bool, error) {
	_, _, applied, err := c.update(ctx, "RemoveWithVersion", key, func(cur entry, found bool) (change, error) {
		if !found || cur.version != version {
			return change{act: keepEntry}, nil
		}
		return change{act: deleteEntry}, nil
	})
	return applied.act == deleteEntry, err
}

// --- compute ---

// compute is shared by the compute family. fn receives the decoded current
// value and decides the new mapping.
func (c *RedisCache[V]) compute(ctx context.Context, op, key string, opts []WriteOption, fn func(current V, found bool) (next V, keep bool, write bool)) (V, bool, error) {
	wo := c.writeOptions(opts)
	var (
		result  V
		present bool
	)
	_, _, _, err := c.update(ctx, op, key, func(cur entry, found bool) (change, error) {
		current, _, err := c.decodeFound(op, key, cur, found)
		if err != nil {
			return change{}, err
		}
		next, keep, write := fn(current, found)
		result, present = next, keep
		switch {
		case !write:
			return change{act: keepEntry}, nil
		case keep:
			raw, err := c.encode(op, key, next)
			if err != nil {
				return change{}, err
			}
			return change{act: storeEntry, raw: raw, opts: wo}, nil
		case found:
			return change{act: deleteEntry}, nil
		default:
			return change{act: keepEntry}, nil
		}
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	if !present {
		var zero V
		return zero, false, nil
	}
	return result, true, nil
}

func (c *RedisCache[V]) Compute(ctx context.Context, key string, fn ComputeFunc[V], opts ...WriteOption) (V, bool, error) {
	return c.compute(ctx, "Compute", key, opts, func(current V, found bool) (V, bool, bool) {
		next, keep := fn(key, current, found)
		return next, keep, true
	})
}

func (c *RedisCache[V]) ComputeIfAbsent(ctx context.Context, key string, fn func(key string) (V, bool), opts ...WriteOption) (V, bool, error) {
	return c.compute(ctx, "ComputeIfAbsent", key, opts, func(current V, found bool) (V, bool, bool) {
		if found {
			return current, true, false
		}
		next, keep := fn(key)
		return next, keep, keep
	})
}

func (c *RedisCache[V]) ComputeIfPresent(ctx context.Context, key string, fn func(key string, current V) (V, bool), opts ...WriteOption) (V, bool, error) {
	return c.compute(ctx, "ComputeIfPresent", key, opts, func(current V, found bool) (V, bool, bool) {
		if !found {
			return current, false, false
		}
		next, keep := fn(key, current)
		return next, keep, true
	})
}

func (c *RedisCache[V]) Merge(ctx context.Context, key string, value V, fn MergeFunc[V], opts ...WriteOption) (V, bool, error) {
	return c.compute(ctx, "Merge", key, opts, func(current V, found bool) (V, bool, bool) {
		if !found {
			return value, true, true
		}
		merged, keep := fn(current, value)
		return merged, keep, true
	})
}

// --- size and iteration ---

func (c *RedisCache[V]) Size(ctx context.Context) (int64, error) {
	if err := c.checkOpen("Size"); err != nil {
		return 0, err
	}
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return 0, c.wrapErr("Size", "", err)
	}
	return int64(len(keys)), nil
}

func (c *RedisCache[V]) IsEmpty(ctx context.Context) (bool, error) {
	n, err := c.Size(ctx)
	return n == 0, err
}

func (c *RedisCache[V]) Keys(ctx context.Context) ([]string, error) {
	if err := c.checkOpen("Keys"); err != nil {
		return nil, err
	}
	redisKeys, err := c.scanKeys(ctx)
	if err != nil {
		return nil, c.wrapErr("Keys", "", err)
	}
	prefix := c.entryPrefix()
	keys := make([]string, len(redisKeys))
	for i, k := range redisKeys {
		keys[i] = strings.TrimPrefix(k, prefix)
	}
	return keys, nil
}

func (c *RedisCache[V]) Values(ctx context.Context) ([]V, error) {
	entries, err := c.Entries(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]V, 0, len(entries))
	for _, v := range entries {
		values = append(values, v)
	}
	return values, nil
}

func (c *RedisCache[V]) Entries(ctx context.Context) (map[string]V, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, "Entries", keys, false)
}

// Clear removes every entry. Version numbers keep increasing afterwards.
func (c *RedisCache[V]) Clear(ctx context.Context) error {
	if err := c.checkOpen("Clear"); err != nil {
		return err
	}
	keys, err := c.scanKeys(ctx)
	if err != nil {
		return c.wrapErr("Clear", "", err)
	}
	for len(keys) > 0 {
		batch := keys
		if len(batch) > scanCount {
			batch = batch[:scanCount]
		}
		keys = keys[len(batch):]
		n, err := c.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return c.wrapErr("Clear", "", err)
		}
		c.removes.Add(n)
	}
	return nil
}

// --- async variants ---

func (c *RedisCache[V]) GetAsync(ctx context.Context, key string) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.Get(ctx, key)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) GetWithMetadataAsync(ctx context.Context, key string) *Future[Lookup[MetadataValue[V]]] {
	return Async(func() (Lookup[MetadataValue[V]], error) {
		v, found, err := c.GetWithMetadata(ctx, key)
		return Lookup[MetadataValue[V]]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) GetAllAsync(ctx context.Context, keys []string) *Future[map[string]V] {
	return Async(func() (map[string]V, error) {
		return c.GetAll(ctx, keys)
	})
}

func (c *RedisCache[V]) ContainsKeyAsync(ctx context.Context, key string) *Future[bool] {
	return Async(func() (bool, error) {
		return c.ContainsKey(ctx, key)
	})
}

func (c *RedisCache[V]) PutAsync(ctx context.Context, key string, value V, opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.Put(ctx, key, value, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) PutIfAbsentAsync(ctx context.Context, key string, value V, opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.PutIfAbsent(ctx, key, value, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) PutAllAsync(ctx context.Context, entries map[string]V, opts ...WriteOption) *Future[struct{}] {
	return Async(func() (struct{}, error) {
		return struct{}{}, c.PutAll(ctx, entries, opts...)
	})
}

func (c *RedisCache[V]) ReplaceAsync(ctx context.Context, key string, value V, opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.Replace(ctx, key, value, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) ReplaceIfEqualsAsync(ctx context.Context, key string, oldValue, newValue V, opts ...WriteOption) *Future[bool] {
	return Async(func() (bool, error) {
		return c.ReplaceIfEquals(ctx, key, oldValue, newValue, opts...)
	})
}

func (c *RedisCache[V]) ReplaceWithVersionAsync(ctx context.Context, key string, value V, version int64, opts ...WriteOption) *Future[bool] {
	return Async(func() (bool, error) {
		return c.ReplaceWithVersion(ctx, key, value, version, opts...)
	})
}

func (c *RedisCache[V]) RemoveAsync(ctx context.Context, key string) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.Remove(ctx, key)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) RemoveIfEqualsAsync(ctx context.Context, key string, value V) *Future[bool] {
	return Async(func() (bool, error) {
		return c.RemoveIfEquals(ctx, key, value)
	})
}

func (c *RedisCache[V]) RemoveWithVersionAsync(ctx context.Context, key string, version int64) *Future[bool] {
	return Async(func() (bool, error) {
		return c.RemoveWithVersion(ctx, key, version)
	})
}

func (c *RedisCache[V]) ComputeAsync(ctx context.Context, key string, fn ComputeFunc[V], opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.Compute(ctx, key, fn, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) ComputeIfAbsentAsync(ctx context.Context, key string, fn func(key string) (V, bool), opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.ComputeIfAbsent(ctx, key, fn, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) ComputeIfPresentAsync(ctx context.Context, key string, fn func(key string, current V) (V, bool), opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.ComputeIfPresent(ctx, key, fn, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) MergeAsync(ctx context.Context, key string, value V, fn MergeFunc[V], opts ...WriteOption) *Future[Lookup[V]] {
	return Async(func() (Lookup[V], error) {
		v, found, err := c.Merge(ctx, key, value, fn, opts...)
		return Lookup[V]{Value: v, Found: found}, err
	})
}

func (c *RedisCache[V]) SizeAsync(ctx context.Context) *Future[int64] {
	return Async(func() (int64, error) {
		return c.Size(ctx)
	})
}

func (c *RedisCache[V]) ClearAsync(ctx context.Context) *Future[struct{}] {
	return Async(func() (struct{}, error) {
		return struct{}{}, c.Clear(ctx)
	})
}

// --- lifecycle ---

func (c *RedisCache[V]) Ping(ctx context.Context) error {
	if err := c.checkOpen("Ping"); err != nil {
		return err
	}
	return c.client.HealthCheck(ctx)
}

func (c *RedisCache[V]) Statistics() Statistics {
	return Statistics{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stores:  c.stores.Load(),
		Removes: c.removes.Load(),
		Since:   c.since,
	}
}

// Close marks the cache closed. The connection is closed only when the cache
// opened it itself.
func (c *RedisCache[V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Info("Closing remote cache", map[string]interface{}{
		"cache":       c.name,
		"instance_id": c.id,
	})
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
