package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/cacheflight/core"
)

// The package logger reports telemetry failures: sink errors, circuit
// breaker transitions and exporter problems. It never sees the business
// outcome of a cache call.
//
// Error logs are rate limited to one per second so that a broken collector
// cannot flood the output.
var pkgLogger atomic.Pointer[limitedLogger]

func init() {
	SetLogger(nil)
}

// SetLogger replaces the logger used for telemetry-internal messages.
// nil installs a no-op logger.
func SetLogger(l core.Logger) {
	pkgLogger.Store(newLimitedLogger(l, time.Second))
}

// GetLogger returns the telemetry logger.
func GetLogger() core.ContextLogger {
	return pkgLogger.Load()
}

// NewLimitedLogger wraps l so that at most one error is logged per interval.
// Dropped errors are counted and reported as suppressed_total on the next
// one that gets through. Other levels pass unchanged.
func NewLimitedLogger(l core.Logger, interval time.Duration) core.ContextLogger {
	return newLimitedLogger(l, interval)
}

func newLimitedLogger(l core.Logger, interval time.Duration) *limitedLogger {
	return &limitedLogger{
		ContextLogger: core.WithContext(l),
		errorLimiter:  NewRateLimiter(interval),
	}
}

type limitedLogger struct {
	core.ContextLogger
	errorLimiter *RateLimiter
}

func (l *limitedLogger) Error(msg string, fields map[string]interface{}) {
	if !l.errorLimiter.Allow() {
		return
	}
	l.ContextLogger.Error(msg, withSuppressed(fields, l.errorLimiter))
}

func (l *limitedLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if !l.errorLimiter.Allow() {
		return
	}
	l.ContextLogger.ErrorWithContext(ctx, msg, withSuppressed(fields, l.errorLimiter))
}

func withSuppressed(fields map[string]interface{}, r *RateLimiter) map[string]interface{} {
	n := r.Suppressed()
	if n == 0 {
		return fields
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["suppressed_total"] = n
	return out
}
