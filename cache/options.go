package cache

import "time"

// WriteOption adjusts the expiry of a single write.
type WriteOption func(*writeOptions)

type writeOptions struct {
	lifespan    time.Duration
	maxIdle     time.Duration
	lifespanSet bool
	maxIdleSet  bool
}

// WithLifespan expires the entry d after the write. Zero makes it immortal.
func WithLifespan(d time.Duration) WriteOption {
	return func(o *writeOptions) {
		o.lifespan = d
		o.lifespanSet = true
	}
}

// WithMaxIdle expires the entry once it has not been read for d. Zero
// disables idle expiry.
func WithMaxIdle(d time.Duration) WriteOption {
	return func(o *writeOptions) {
		o.maxIdle = d
		o.maxIdleSet = true
	}
}

// resolveWriteOptions applies opts over the cache defaults.
func resolveWriteOptions(defLifespan, defMaxIdle time.Duration, opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if !o.lifespanSet {
		o.lifespan = defLifespan
	}
	if !o.maxIdleSet {
		o.maxIdle = defMaxIdle
	}
	if o.lifespan < 0 {
		o.lifespan = 0
	}
	if o.maxIdle < 0 {
		o.maxIdle = 0
	}
	return o
}

// expiryTTL returns the Redis expiry for an entry written now, or zero.
func expiryTTL(lifespan, maxIdle time.Duration) time.Duration {
	switch {
	case lifespan > 0 && maxIdle > 0:
		if maxIdle < lifespan {
			return maxIdle
		}
		return lifespan
	case lifespan > 0:
		return lifespan
	default:
		return maxIdle
	}
}
