// Package supervisor wraps a thermostat device with schedule control, safety bounds and runtime accounting.
//
// All state is owned by the goroutine executing Run. Device updates, ticks, schedule reloads and user requests are all handled
// by that goroutine, one at a time. Side effects (device commands, notifications and saves) are handed to a Submitter, so the
// loop never blocks on I/O. Notifications can be given their own Submitter, so a slow notification channel never delays a
// device command.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/device"
	"github.com/clambin/enhanced-thermostat/internal/dispatcher"
	"github.com/clambin/enhanced-thermostat/internal/ledger"
	"github.com/clambin/enhanced-thermostat/internal/notifier"
	"github.com/clambin/enhanced-thermostat/internal/safety"
	"github.com/clambin/enhanced-thermostat/internal/schedule"
	"github.com/clambin/enhanced-thermostat/internal/store"
)

// OverrideDuration is how long a manual change suspends the schedule.
const OverrideDuration = 24 * time.Hour

// Submitter runs jobs in the background. *dispatcher.Dispatcher implements it.
type Submitter interface {
	Submit(name string, job dispatcher.Job) bool
}

// Device is the part of a device.Device the Supervisor needs.
type Device interface {
	device.Controller
	device.Observer
}

// Config holds the Supervisor's settings.
type Config struct {
	Name     string
	Bounds   safety.Bounds
	Location *time.Location
	Schedule schedule.Definition
}

// Supervisor owns the state of one enhanced thermostat.
type Supervisor struct {
	// Ticks triggers a schedule evaluation. Typically fed by a ticker.Ticker.
	Ticks <-chan time.Time
	// ScheduleUpdates delivers reloaded schedules. Typically fed by a schedule.Watcher.
	ScheduleUpdates <-chan schedule.Definition
	// Alerts runs notification jobs. If nil, notifications are queued behind device commands.
	Alerts Submitter

	name      string
	location  *time.Location
	device    Device
	store     store.Store
	notifier  notifier.Notifier
	submitter Submitter
	logger    *slog.Logger
	now       func() time.Time
	requests  chan request

	guard    safety.Guard
	schedule *schedule.Schedule
	tracker  ledger.Tracker
	ledger   ledger.Ledger
	latest   *climate.Snapshot
	setpoint *schedule.Setpoint

	lock   sync.RWMutex
	status Status
}

type request struct {
	apply func(now time.Time)
	done  chan struct{}
}

// New returns a Supervisor. Call Run to start it.
func New(cfg Config, dev Device, st store.Store, n notifier.Notifier, submitter Submitter, logger *slog.Logger) (*Supervisor, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	s := Supervisor{
		name:      cfg.Name,
		location:  location,
		device:    dev,
		store:     st,
		notifier:  n,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
		requests:  make(chan request),
		guard:     safety.Guard{Bounds: cfg.Bounds},
		schedule:  schedule.New(cfg.Schedule),
		ledger:    make(ledger.Ledger),
	}
	s.publishStatus()
	return &s, nil
}

// Run loads the persisted runtime ledger and processes events until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Debug("started")
	defer s.logger.Debug("stopped")

	s.loadLedger(ctx)

	snapshots := s.device.Subscribe()
	defer s.device.Unsubscribe(snapshots)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot := <-snapshots:
			s.OnDeviceUpdate(snapshot)
		case now := <-s.Ticks:
			s.OnTick(now)
		case definition := <-s.ScheduleUpdates:
			s.OnScheduleChange(definition)
		case req := <-s.requests:
			req.apply(s.now())
			close(req.done)
		}
	}
}

func (s *Supervisor) loadLedger(ctx context.Context) {
	persisted, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load runtime. starting with an empty ledger", "err", err)
	}
	s.ledger.Merge(persisted)
	s.logger.Debug("runtime loaded", "days", len(persisted))
	s.publishStatus()
}

// OnDeviceUpdate processes a new device snapshot: the runtime ledger is updated and the safety guard is evaluated.
//
// OnDeviceUpdate must only be called by the goroutine running Run (or, in tests, instead of Run).
func (s *Supervisor) OnDeviceUpdate(snapshot climate.Snapshot) {
	at := snapshot.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	at = at.In(s.location)

	if delta, ok := s.tracker.Observe(snapshot.Action, at); ok && s.ledger.Add(delta) {
		s.logger.Debug("runtime updated", "day", delta.Day, "heating", delta.Heating, "cooling", delta.Cooling)
		s.save()
	}

	s.evaluateSafety(snapshot)
	s.latest = &snapshot
	s.publishStatus()
}

func (s *Supervisor) evaluateSafety(snapshot climate.Snapshot) {
	before := s.guard.State()
	result, err := s.guard.Evaluate(snapshot)
	if err != nil {
		if errors.Is(err, safety.ErrNoTemperature) {
			s.logger.Debug("safety check skipped", "err", err)
		}
		return
	}
	if result.State != before {
		s.logger.Info("safety state changed", "from", before, "to", result.State)
	}
	if result.Command != nil {
		s.send("safety", *result.Command)
	}
	if result.Notification != "" {
		s.notify(result.Notification)
	}
}

// OnTick evaluates the schedule at the provided time. If the schedule wants the device in a different mode, or at a different
// target temperature, than it last reported, the difference is sent to the device.
//
// OnTick must only be called by the goroutine running Run (or, in tests, instead of Run).
func (s *Supervisor) OnTick(now time.Time) {
	setpoint, ok := s.schedule.Evaluate(now.In(s.location))
	if !ok {
		s.setpoint = nil
		s.publishStatus()
		return
	}
	s.setpoint = &setpoint

	var command climate.Command
	if setpoint.Mode != nil && (s.latest == nil || s.latest.Mode != *setpoint.Mode) {
		command.Mode = setpoint.Mode
	}
	if setpoint.Temperature != nil && (s.latest == nil || s.latest.TargetTemperature == nil || *s.latest.TargetTemperature != *setpoint.Temperature) {
		command.Temperature = setpoint.Temperature
	}
	if !command.IsZero() {
		s.logger.Info("applying schedule", "setpoint", setpoint.String(), "command", command.String())
		s.send("schedule", command)
	}
	s.publishStatus()
}

// OnScheduleChange installs a reloaded schedule. A nil Definition disables scheduling. Any manual override remains in place.
//
// OnScheduleChange must only be called by the goroutine running Run (or, in tests, instead of Run).
func (s *Supervisor) OnScheduleChange(definition schedule.Definition) {
	s.schedule.Replace(definition)
	if definition == nil {
		s.logger.Warn("no valid schedule. scheduling disabled")
	} else {
		s.logger.Info("schedule loaded", "days", len(definition.Days()))
	}
	s.publishStatus()
}

// SetTemperature sets the device's target temperature on behalf of the user. The schedule is suspended for OverrideDuration.
// It returns once the request has been handled by Run, or when ctx is done.
func (s *Supervisor) SetTemperature(ctx context.Context, temperature float64) error {
	return s.do(ctx, func(now time.Time) {
		s.override(now)
		s.send("user", climate.SetTemperature(temperature))
	})
}

// SetHVACMode sets the device's mode on behalf of the user. The schedule is suspended for OverrideDuration.
// It returns once the request has been handled by Run, or when ctx is done.
func (s *Supervisor) SetHVACMode(ctx context.Context, mode climate.HVACMode) error {
	return s.do(ctx, func(now time.Time) {
		s.override(now)
		s.send("user", climate.SetMode(mode))
	})
}

// ResumeSchedule cancels a manual override, so the next tick applies the schedule again.
func (s *Supervisor) ResumeSchedule(ctx context.Context) error {
	return s.do(ctx, func(time.Time) {
		s.schedule.ClearOverride()
		s.logger.Info("schedule resumed")
		s.publishStatus()
	})
}

func (s *Supervisor) do(ctx context.Context, apply func(time.Time)) error {
	req := request{apply: apply, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return fmt.Errorf("supervisor: %w", ctx.Err())
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor: %w", ctx.Err())
	}
}

func (s *Supervisor) override(now time.Time) {
	until := now.Add(OverrideDuration)
	s.schedule.SetOverride(until)
	s.logger.Info("schedule overridden", "until", until)
	s.publishStatus()
}

func (s *Supervisor) send(source string, command climate.Command) {
	s.submitter.Submit(source+" command", func(ctx context.Context) error {
		return device.Apply(ctx, s.device, command)
	})
}

func (s *Supervisor) notify(msg string) {
	submitter := s.Alerts
	if submitter == nil {
		submitter = s.submitter
	}
	submitter.Submit("notify", func(ctx context.Context) error {
		s.notifier.Notify(ctx, msg)
		return nil
	})
}

func (s *Supervisor) save() {
	snapshot := s.ledger.Clone()
	s.submitter.Submit("save runtime", func(ctx context.Context) error {
		return s.store.Save(ctx, snapshot)
	})
}
