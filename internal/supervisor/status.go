package supervisor

import (
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/ledger"
	"github.com/clambin/enhanced-thermostat/internal/safety"
)

// Status is a point-in-time copy of the Supervisor's state.
type Status struct {
	Name     string            `json:"name"`
	Snapshot *climate.Snapshot `json:"snapshot,omitempty"`
	Safety   safety.State      `json:"safety"`
	Schedule ScheduleStatus    `json:"schedule"`
	Today    ledger.DayTotals  `json:"today"`
	Runtime  ledger.Ledger     `json:"runtime"`
	Updated  time.Time         `json:"updated"`
}

// ScheduleStatus describes the state of the schedule.
type ScheduleStatus struct {
	Enabled       bool              `json:"enabled"`
	OverrideUntil *time.Time        `json:"override_until,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	Mode          *climate.HVACMode `json:"hvac_mode,omitempty"`
}

// Ready returns true once the device reported its state.
func (s Status) Ready() bool {
	return s.Snapshot != nil
}

// Status returns the Supervisor's current state. It is safe to call from any goroutine.
func (s *Supervisor) Status() Status {
	s.lock.RLock()
	defer s.lock.RUnlock()
	status := s.status
	status.Runtime = status.Runtime.Clone()
	status.Today = status.Runtime.Day(ledger.DayKey(s.now().In(s.location)))
	return status
}

// publishStatus makes the current state available to Status. Only called by the goroutine owning the state.
func (s *Supervisor) publishStatus() {
	status := Status{
		Name:     s.name,
		Snapshot: s.latest,
		Safety:   s.guard.State(),
		Schedule: ScheduleStatus{Enabled: s.schedule.Definition() != nil},
		Runtime:  s.ledger.Clone(),
		Updated:  s.now(),
	}
	if until, ok := s.schedule.Override(); ok {
		status.Schedule.OverrideUntil = &until
	}
	if s.setpoint != nil {
		status.Schedule.Temperature = s.setpoint.Temperature
		status.Schedule.Mode = s.setpoint.Mode
	}

	s.lock.Lock()
	s.status = status
	s.lock.Unlock()
}
