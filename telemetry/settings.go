package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/itsneelabh/cacheflight/core"
)

// Settings holds the runtime switches shared by sinks: per-kind enablement
// and the minimum duration of committed Period events. A nil *Settings
// enables everything.
type Settings struct {
	start     atomic.Bool
	period    atomic.Bool
	end       atomic.Bool
	threshold atomic.Int64
}

// NewSettings creates settings from the recorder section of the configuration.
func NewSettings(cfg core.RecorderConfig) *Settings {
	s := &Settings{}
	s.start.Store(cfg.StartEnabled)
	s.period.Store(cfg.PeriodEnabled)
	s.end.Store(cfg.EndEnabled)
	s.threshold.Store(int64(cfg.PeriodThreshold))
	return s
}

// AllEnabled returns settings with every kind enabled and no threshold.
func AllEnabled() *Settings {
	s := &Settings{}
	s.start.Store(true)
	s.period.Store(true)
	s.end.Store(true)
	return s
}

func (s *Settings) flag(kind EventKind) *atomic.Bool {
	switch kind {
	case KindStart:
		return &s.start
	case KindPeriod:
		return &s.period
	case KindEnd:
		return &s.end
	default:
		return nil
	}
}

// Enabled reports whether events of kind are committed.
func (s *Settings) Enabled(kind EventKind) bool {
	if s == nil {
		return true
	}
	f := s.flag(kind)
	return f != nil && f.Load()
}

// SetEnabled turns committing of kind on or off. Safe to call while events
// are being recorded.
func (s *Settings) SetEnabled(kind EventKind, enabled bool) {
	if f := s.flag(kind); f != nil {
		f.Store(enabled)
	}
}

// PeriodThreshold returns the minimum duration of committed Period events.
func (s *Settings) PeriodThreshold() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.threshold.Load())
}

// SetPeriodThreshold changes the Period threshold. Negative values are
// treated as zero.
func (s *Settings) SetPeriodThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.threshold.Store(int64(d))
}

// WouldCommit applies the settings to ev. Period events are checked against
// the threshold, so the probe is meaningful once the period ended.
func (s *Settings) WouldCommit(ev *Event) bool {
	if ev == nil || !s.Enabled(ev.Kind) {
		return false
	}
	if ev.Kind == KindPeriod && ev.Duration < s.PeriodThreshold() {
		return false
	}
	return true
}
