package telemetry

import (
	"sync"
	"time"
)

// OverflowValue replaces attribute values once a label reached its limit.
const OverflowValue = "other"

// CardinalityLimiter bounds the number of distinct values a metric label may
// take. Values first seen after the limit was reached are reported as
// OverflowValue. Values not used for ten minutes are forgotten.
type CardinalityLimiter struct {
	limits map[string]int
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]map[string]time.Time // metric.label -> value -> last use

	stopChan chan struct{}
	stopped  sync.Once
}

// NewCardinalityLimiter creates a limiter with a per-label limit and starts
// its cleanup loop. Call Stop to end the loop.
func NewCardinalityLimiter(limits map[string]int) *CardinalityLimiter {
	c := newCardinalityLimiter(limits, time.Now)
	go c.cleanupLoop()
	return c
}

func newCardinalityLimiter(limits map[string]int, now func() time.Time) *CardinalityLimiter {
	return &CardinalityLimiter{
		limits:   limits,
		now:      now,
		seen:     make(map[string]map[string]time.Time),
		stopChan: make(chan struct{}),
	}
}

// CheckAndLimit returns value, or OverflowValue when accepting it would
// exceed the limit of label on metric.
func (c *CardinalityLimiter) CheckAndLimit(metric, label, value string) string {
	limit, hasLimit := c.limits[label]
	if !hasLimit {
		return value
	}
	key := metric + "." + label

	c.mu.Lock()
	defer c.mu.Unlock()

	values, ok := c.seen[key]
	if !ok {
		values = make(map[string]time.Time)
		c.seen[key] = values
	}
	if _, exists := values[value]; !exists && len(values) >= limit {
		return OverflowValue
	}
	values[value] = c.now()
	return value
}

// CurrentCardinality returns the number of tracked values across labels.
func (c *CardinalityLimiter) CurrentCardinality() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, values := range c.seen {
		total += len(values)
	}
	return total
}

func (c *CardinalityLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			return
		}
	}
}

// cleanup removes values unused for ten minutes.
func (c *CardinalityLimiter) cleanup() {
	cutoff := c.now().Add(-10 * time.Minute)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, values := range c.seen {
		for v, last := range values {
			if last.Before(cutoff) {
				delete(values, v)
			}
		}
		if len(values) == 0 {
			delete(c.seen, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (c *CardinalityLimiter) Stop() {
	c.stopped.Do(func() {
		close(c.stopChan)
	})
}
