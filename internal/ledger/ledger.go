// Package ledger accumulates the time a device spends heating and cooling, per calendar day.
package ledger

import (
	"maps"
	"slices"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
)

// DayKeyLayout is the layout of a Ledger's keys.
const DayKeyLayout = time.DateOnly

// DayKey returns the Ledger key for t's calendar day, in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// DayTotals holds the runtime of one day, in hours.
type DayTotals struct {
	HeatingHours float64 `json:"heating_hours"`
	CoolingHours float64 `json:"cooling_hours"`
}

// Delta is the runtime to add to a day.
type Delta struct {
	Day     string
	Heating float64
	Cooling float64
}

// IsZero returns true if the Delta doesn't add any runtime.
func (d Delta) IsZero() bool {
	return d.Heating == 0 && d.Cooling == 0
}

// Ledger maps a day (see DayKey) to its runtime totals.
type Ledger map[string]DayTotals

// Add adds the Delta to the Ledger. It returns true if any totals changed.
func (l Ledger) Add(delta Delta) bool {
	if delta.IsZero() {
		return false
	}
	totals := l[delta.Day]
	totals.HeatingHours += delta.Heating
	totals.CoolingHours += delta.Cooling
	l[delta.Day] = totals
	return true
}

// Merge adds the totals of other to the Ledger. Used at startup to install the persisted totals.
func (l Ledger) Merge(other Ledger) {
	for day, totals := range other {
		current := l[day]
		current.HeatingHours += totals.HeatingHours
		current.CoolingHours += totals.CoolingHours
		l[day] = current
	}
}

// Day returns the totals for a day. Unknown days return zero totals.
func (l Ledger) Day(day string) DayTotals {
	return l[day]
}

// Days returns the Ledger's keys in chronological order.
func (l Ledger) Days() []string {
	return slices.Sorted(maps.Keys(l))
}

// Clone returns a copy of the Ledger.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return Ledger{}
	}
	return maps.Clone(l)
}

// Totals returns the sum of all days.
func (l Ledger) Totals() DayTotals {
	var totals DayTotals
	for _, day := range l {
		totals.HeatingHours += day.HeatingHours
		totals.CoolingHours += day.CoolingHours
	}
	return totals
}

// Observe returns the runtime accrued by the previous action, if the action changed. It returns false if either action is unknown,
// the action didn't change, or prevAt is not set.
//
// The runtime is attributed to now's day, even if the previous action started the day before.
func Observe(prev, next climate.HVACAction, prevAt, now time.Time) (Delta, bool) {
	if prev == climate.ActionUnknown || next == climate.ActionUnknown || prev == next || prevAt.IsZero() {
		return Delta{}, false
	}
	delta := Delta{Day: DayKey(now)}
	hours := now.Sub(prevAt).Hours()
	if hours < 0 {
		hours = 0
	}
	switch prev {
	case climate.ActionHeating:
		delta.Heating = hours
	case climate.ActionCooling:
		delta.Cooling = hours
	}
	return delta, true
}

// Tracker remembers the last observed action, so each new observation can be converted into a Delta.
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	action climate.HVACAction
	since  time.Time
}

// Observe records the action reported at the provided time. It returns the runtime accrued by the previous action, if the action
// changed. The first observation only establishes a baseline. Unknown actions are ignored.
func (t *Tracker) Observe(action climate.HVACAction, at time.Time) (Delta, bool) {
	if action == climate.ActionUnknown {
		return Delta{}, false
	}
	delta, ok := Observe(t.action, action, t.since, at)
	if t.action != action {
		t.action = action
		t.since = at
	}
	return delta, ok
}

// Action returns the last observed action and when it started.
func (t *Tracker) Action() (climate.HVACAction, time.Time) {
	return t.action, t.since
}
