package ledger_test

import (
	"testing"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func TestObserve(t *testing.T) {
	tests := []struct {
		name    string
		prev    climate.HVACAction
		next    climate.HVACAction
		prevAt  time.Time
		now     time.Time
		wantOK  bool
		heating float64
		cooling float64
	}{
		{name: "no baseline", prev: climate.ActionUnknown, next: climate.ActionHeating, prevAt: base, now: base.Add(time.Hour)},
		{name: "no timestamp", prev: climate.ActionHeating, next: climate.ActionIdle, now: base.Add(time.Hour)},
		{name: "unchanged", prev: climate.ActionHeating, next: climate.ActionHeating, prevAt: base, now: base.Add(time.Hour)},
		{name: "heating stops", prev: climate.ActionHeating, next: climate.ActionIdle, prevAt: base, now: base.Add(90 * time.Minute), wantOK: true, heating: 1.5},
		{name: "cooling stops", prev: climate.ActionCooling, next: climate.ActionOff, prevAt: base, now: base.Add(15 * time.Minute), wantOK: true, cooling: 0.25},
		{name: "heating to cooling", prev: climate.ActionHeating, next: climate.ActionCooling, prevAt: base, now: base.Add(2 * time.Hour), wantOK: true, heating: 2},
		{name: "idle accrues nothing", prev: climate.ActionIdle, next: climate.ActionHeating, prevAt: base, now: base.Add(time.Hour), wantOK: true},
		{name: "clock went backwards", prev: climate.ActionHeating, next: climate.ActionIdle, prevAt: base, now: base.Add(-time.Hour), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			delta, ok := ledger.Observe(tt.prev, tt.next, tt.prevAt, tt.now)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, ledger.DayKey(tt.now), delta.Day)
				assert.InDelta(t, tt.heating, delta.Heating, 1e-9)
				assert.InDelta(t, tt.cooling, delta.Cooling, 1e-9)
			}
		})
	}
}

func TestObserve_AcrossMidnight(t *testing.T) {
	start := time.Date(2024, time.March, 4, 23, 0, 0, 0, time.UTC)
	delta, ok := ledger.Observe(climate.ActionHeating, climate.ActionIdle, start, start.Add(2*time.Hour))
	require.True(t, ok)
	assert.Equal(t, "2024-03-05", delta.Day)
	assert.Equal(t, 2.0, delta.Heating)
}

func TestTracker(t *testing.T) {
	var tracker ledger.Tracker
	l := ledger.Ledger{}

	steps := []struct {
		action  climate.HVACAction
		at      time.Duration
		wantOK  bool
		changed bool
	}{
		{action: climate.ActionHeating, at: 0},
		{action: climate.ActionHeating, at: 30 * time.Minute},
		{action: climate.ActionUnknown, at: 45 * time.Minute},
		{action: climate.ActionIdle, at: time.Hour, wantOK: true, changed: true},
		{action: climate.ActionCooling, at: 2 * time.Hour, wantOK: true},
		{action: climate.ActionOff, at: 2*time.Hour + 30*time.Minute, wantOK: true, changed: true},
	}

	for i, step := range steps {
		delta, ok := tracker.Observe(step.action, base.Add(step.at))
		require.Equal(t, step.wantOK, ok, i)
		assert.Equal(t, step.changed, l.Add(delta), i)
	}

	totals := l.Day(ledger.DayKey(base))
	assert.Equal(t, 1.0, totals.HeatingHours)
	assert.Equal(t, 0.5, totals.CoolingHours)

	action, since := tracker.Action()
	assert.Equal(t, climate.ActionOff, action)
	assert.Equal(t, base.Add(2*time.Hour+30*time.Minute), since)
}

func TestTracker_FirstObservation(t *testing.T) {
	for _, action := range []climate.HVACAction{climate.ActionHeating, climate.ActionCooling, climate.ActionIdle, climate.ActionOff} {
		var tracker ledger.Tracker
		_, ok := tracker.Observe(action, base)
		assert.False(t, ok, action)
	}
}

func TestLedger(t *testing.T) {
	l := ledger.Ledger{}
	assert.False(t, l.Add(ledger.Delta{Day: "2024-03-04"}))
	assert.Empty(t, l)

	assert.True(t, l.Add(ledger.Delta{Day: "2024-03-04", Heating: 1}))
	assert.True(t, l.Add(ledger.Delta{Day: "2024-03-04", Heating: 0.5, Cooling: 0.25}))
	assert.True(t, l.Add(ledger.Delta{Day: "2024-03-03", Cooling: 2}))

	assert.Equal(t, ledger.DayTotals{HeatingHours: 1.5, CoolingHours: 0.25}, l.Day("2024-03-04"))
	assert.Equal(t, ledger.DayTotals{}, l.Day("2024-03-05"))
	assert.Equal(t, []string{"2024-03-03", "2024-03-04"}, l.Days())
	assert.Equal(t, ledger.DayTotals{HeatingHours: 1.5, CoolingHours: 2.25}, l.Totals())

	clone := l.Clone()
	clone.Add(ledger.Delta{Day: "2024-03-05", Heating: 1})
	assert.Len(t, l, 2)
	assert.Len(t, clone, 3)

	var empty ledger.Ledger
	assert.NotNil(t, empty.Clone())
}

func TestLedger_Merge(t *testing.T) {
	l := ledger.Ledger{"2024-03-04": {HeatingHours: 1}}
	l.Merge(ledger.Ledger{
		"2024-03-03": {HeatingHours: 2, CoolingHours: 1},
		"2024-03-04": {HeatingHours: 3},
	})
	assert.Equal(t, ledger.Ledger{
		"2024-03-03": {HeatingHours: 2, CoolingHours: 1},
		"2024-03-04": {HeatingHours: 4},
	}, l)
}
