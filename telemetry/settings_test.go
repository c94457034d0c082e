package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/cacheflight/core"
	"github.com/stretchr/testify/assert"
)

func TestSettingsFromConfig(t *testing.T) {
	s := NewSettings(core.RecorderConfig{
		StartEnabled:    false,
		PeriodEnabled:   true,
		EndEnabled:      true,
		PeriodThreshold: 10 * time.Millisecond,
	})

	assert.False(t, s.Enabled(KindStart))
	assert.True(t, s.Enabled(KindPeriod))
	assert.True(t, s.Enabled(KindEnd))
	assert.False(t, s.Enabled(EventKind(0)))
	assert.Equal(t, 10*time.Millisecond, s.PeriodThreshold())
}

func TestSettingsNilEnablesEverything(t *testing.T) {
	var s *Settings
	for _, k := range Kinds {
		assert.True(t, s.Enabled(k))
	}
	assert.Zero(t, s.PeriodThreshold())
	assert.True(t, s.WouldCommit(&Event{Kind: KindPeriod}))
	assert.False(t, s.WouldCommit(nil))
}

func TestSettingsWouldCommit(t *testing.T) {
	s := AllEnabled()
	s.SetPeriodThreshold(5 * time.Millisecond)

	assert.True(t, s.WouldCommit(&Event{Kind: KindStart}))
	assert.True(t, s.WouldCommit(&Event{Kind: KindEnd}))
	assert.False(t, s.WouldCommit(&Event{Kind: KindPeriod, Duration: 4 * time.Millisecond}))
	assert.True(t, s.WouldCommit(&Event{Kind: KindPeriod, Duration: 5 * time.Millisecond}))

	s.SetEnabled(KindEnd, false)
	assert.False(t, s.WouldCommit(&Event{Kind: KindEnd}))

	s.SetPeriodThreshold(-time.Second)
	assert.Zero(t, s.PeriodThreshold())
}

func TestSettingsConcurrentToggle(t *testing.T) {
	s := AllEnabled()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SetEnabled(KindStart, (i+j)%2 == 0)
				_ = s.WouldCommit(&Event{Kind: KindStart})
			}
		}(i)
	}
	wg.Wait()
}
