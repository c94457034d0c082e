package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/cacheflight/core"
)

// Circuit states reported by CircuitBreaker.State.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
	CircuitDisabled = "disabled"
)

// CircuitConfig configures the breaker in front of a sink.
type CircuitConfig struct {
	Enabled      bool
	MaxFailures  int
	RecoveryTime time.Duration
	HalfOpenMax  int // commits allowed while half-open
}

// CircuitConfigFrom converts the recorder's configuration section.
func CircuitConfigFrom(cfg core.CircuitBreakerConfig) CircuitConfig {
	return CircuitConfig{
		Enabled:      cfg.Enabled,
		MaxFailures:  cfg.MaxFailures,
		RecoveryTime: cfg.RecoveryTime,
		HalfOpenMax:  cfg.HalfOpenMax,
	}
}

// CircuitBreaker stops event delivery to a sink that keeps failing. While
// open, events are dropped. After RecoveryTime a limited number of trial
// commits is let through; enough successes close the circuit again.
//
// A nil *CircuitBreaker allows everything.
type CircuitBreaker struct {
	config CircuitConfig
	logger core.Logger
	now    func() time.Time

	state           atomic.Value // string
	failures        atomic.Int64
	trials          atomic.Int64
	lastFailureTime atomic.Value // time.Time

	mu sync.Mutex
}

// NewCircuitBreaker returns nil when config is disabled. Zero fields take
// the defaults 10 failures, 30s recovery and 5 half-open trials.
func NewCircuitBreaker(config CircuitConfig, logger core.Logger) *CircuitBreaker {
	if !config.Enabled {
		return nil
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 10
	}
	if config.RecoveryTime <= 0 {
		config.RecoveryTime = 30 * time.Second
	}
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = 5
	}
	if logger == nil {
		logger = GetLogger()
	}

	cb := &CircuitBreaker{
		config: config,
		logger: logger,
		now:    time.Now,
	}
	cb.state.Store(CircuitClosed)
	cb.lastFailureTime.Store(time.Time{})
	return cb
}

// Allow reports whether the next commit may reach the sink.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}

	switch cb.State() {
	case CircuitOpen:
		lastFailure, _ := cb.lastFailureTime.Load().(time.Time)
		if lastFailure.IsZero() || cb.now().Sub(lastFailure) <= cb.config.RecoveryTime {
			return false
		}
		cb.mu.Lock()
		if cb.state.Load().(string) == CircuitOpen {
			cb.state.Store(CircuitHalfOpen)
			cb.trials.Store(0)
			cb.logger.Info("Event sink circuit HALF-OPEN, sending trial events", map[string]interface{}{
				"recovery_wait": cb.config.RecoveryTime.String(),
				"max_trials":    cb.config.HalfOpenMax,
			})
		}
		cb.mu.Unlock()
		return cb.Allow()

	case CircuitHalfOpen:
		if cb.trials.Add(1) <= int64(cb.config.HalfOpenMax) {
			return true
		}
		cb.trials.Add(-1)
		return false

	default:
		return true
	}
}

// RecordSuccess closes a half-open circuit once every trial succeeded and
// clears the failure count of a closed one.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	switch cb.State() {
	case CircuitHalfOpen:
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.state.Load().(string) != CircuitHalfOpen {
			return
		}
		if cb.trials.Load() < int64(cb.config.HalfOpenMax) {
			return
		}
		cb.state.Store(CircuitClosed)
		cb.failures.Store(0)
		cb.trials.Store(0)

		recovery := "unknown"
		if lastFailure, ok := cb.lastFailureTime.Load().(time.Time); ok && !lastFailure.IsZero() {
			recovery = cb.now().Sub(lastFailure).String()
		}
		cb.logger.Info("Event sink circuit CLOSED, delivery resumed", map[string]interface{}{
			"recovery_duration": recovery,
		})
	case CircuitClosed:
		cb.failures.Store(0)
	}
}

// RecordFailure counts a failed commit. Reaching MaxFailures, or any
// failure while half-open, opens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	failures := cb.failures.Add(1)
	cb.lastFailureTime.Store(cb.now())

	if failures < int64(cb.config.MaxFailures) && cb.State() != CircuitHalfOpen {
		if failures == 1 {
			cb.logger.Info("Event sink reported first failure", map[string]interface{}{
				"failure_count": failures,
				"max_failures":  cb.config.MaxFailures,
			})
		} else if failures == int64(cb.config.MaxFailures)-1 {
			cb.logger.Warn("Event sink circuit one failure from opening", map[string]interface{}{
				"failure_count": failures,
				"max_failures":  cb.config.MaxFailures,
			})
		}
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	previous := cb.state.Load().(string)
	if previous == CircuitOpen {
		return
	}
	cb.state.Store(CircuitOpen)
	cb.trials.Store(0)
	cb.logger.Warn("Event sink circuit OPEN, cache events will be dropped", map[string]interface{}{
		"previous_state": previous,
		"failure_count":  failures,
		"recovery_time":  cb.config.RecoveryTime.String(),
		"impact":         fmt.Sprintf("events dropped for at least %s", cb.config.RecoveryTime),
	})
}

// State returns the current state, or CircuitDisabled for a nil breaker.
func (cb *CircuitBreaker) State() string {
	if cb == nil {
		return CircuitDisabled
	}
	return cb.state.Load().(string)
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int64 {
	if cb == nil {
		return 0
	}
	return cb.failures.Load()
}

// Reset closes the circuit and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	previous := cb.state.Load().(string)
	previousFailures := cb.failures.Load()

	cb.state.Store(CircuitClosed)
	cb.failures.Store(0)
	cb.trials.Store(0)
	cb.lastFailureTime.Store(time.Time{})

	if previous != CircuitClosed || previousFailures > 0 {
		cb.logger.Info("Event sink circuit reset", map[string]interface{}{
			"previous_state":    previous,
			"previous_failures": previousFailures,
		})
	}
}
