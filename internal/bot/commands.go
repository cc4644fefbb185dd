package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/ledger"
	"github.com/clambin/enhanced-thermostat/internal/slacktools"
	"github.com/clambin/enhanced-thermostat/internal/supervisor"
)

const (
	defaultRuntimeDays = 7
	defaultUnit        = "ºC"
)

var ErrNoUpdates = errors.New("no updates yet. please check back later")

// Thermostat is the part of the Supervisor the bot exposes.
type Thermostat interface {
	Status() supervisor.Status
	SetTemperature(ctx context.Context, temperature float64) error
	SetHVACMode(ctx context.Context, mode climate.HVACMode) error
	ResumeSchedule(ctx context.Context) error
}

type commandRunner struct {
	thermostat Thermostat
}

func (r commandRunner) status(_ context.Context, _ ...string) (slacktools.Attachment, error) {
	status := r.thermostat.Status()
	if !status.Ready() {
		return slacktools.Attachment{}, ErrNoUpdates
	}
	snapshot := status.Snapshot

	mode := snapshot.Mode.String()
	if snapshot.Action != climate.ActionUnknown {
		mode += " (" + snapshot.Action.String() + ")"
	}
	return slacktools.Attachment{
		Header: status.Name,
		Body: []string{
			"*temperature*: " + formatTemperature(snapshot.CurrentTemperature, snapshot.Unit),
			"*target*: " + formatTemperature(snapshot.TargetTemperature, snapshot.Unit),
			"*mode*: " + mode,
			"*safety*: " + safetyState(status),
			"*schedule*: " + scheduleState(status),
			"*today*: " + formatTotals(status.Today),
		},
	}, nil
}

// formatTemperature formats t in the device's unit. Devices that don't report a unit are assumed to use celsius.
func formatTemperature(t *float64, unit string) string {
	if t == nil {
		return "unknown"
	}
	if unit == "" {
		unit = defaultUnit
	}
	return fmt.Sprintf("%.1f%s", *t, unit)
}

func safetyState(status supervisor.Status) string {
	if !status.Safety.Active {
		return "normal"
	}
	return "active (" + status.Safety.Mode.String() + ")"
}

func scheduleState(status supervisor.Status) string {
	switch {
	case !status.Schedule.Enabled:
		return "disabled"
	case status.Schedule.OverrideUntil != nil:
		return "overridden until " + status.Schedule.OverrideUntil.Format("Mon 15:04")
	default:
		return "active"
	}
}

func formatTotals(totals ledger.DayTotals) string {
	return fmt.Sprintf("heating %.1fh, cooling %.1fh", totals.HeatingHours, totals.CoolingHours)
}

// runtime reports the last n days of runtime (default 7).
func (r commandRunner) runtime(_ context.Context, args ...string) (slacktools.Attachment, error) {
	days := defaultRuntimeDays
	if len(args) > 0 {
		var err error
		if days, err = strconv.Atoi(args[0]); err != nil || days <= 0 {
			return slacktools.Attachment{}, fmt.Errorf("invalid number of days: %q", args[0])
		}
	}

	runtime := r.thermostat.Status().Runtime
	keys := runtime.Days()
	if len(keys) > days {
		keys = keys[len(keys)-days:]
	}
	body := make([]string, 0, len(keys))
	for _, day := range keys {
		body = append(body, "*"+day+"*: "+formatTotals(runtime[day]))
	}
	if len(body) == 0 {
		body = append(body, "no runtime recorded yet")
	}
	return slacktools.Attachment{Header: "Runtime:", Body: body}, nil
}

func (r commandRunner) setTemperature(ctx context.Context, args ...string) (slacktools.Attachment, error) {
	if len(args) != 1 {
		return slacktools.Attachment{}, errors.New("usage: /settemp <temperature>")
	}
	temperature, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return slacktools.Attachment{}, fmt.Errorf("invalid temperature: %q", args[0])
	}
	if err = r.thermostat.SetTemperature(ctx, temperature); err != nil {
		return slacktools.Attachment{}, err
	}
	return slacktools.Attachment{
		Header: "Temperature set",
		Body:   []string{fmt.Sprintf("target temperature set to %.1f. schedule suspended for %s", temperature, supervisor.OverrideDuration)},
	}, nil
}

func (r commandRunner) setMode(ctx context.Context, args ...string) (slacktools.Attachment, error) {
	if len(args) != 1 {
		return slacktools.Attachment{}, errors.New("usage: /setmode <off|heat|cool|heat_cool>")
	}
	mode, err := climate.ParseHVACMode(args[0])
	if err != nil {
		return slacktools.Attachment{}, err
	}
	if err = r.thermostat.SetHVACMode(ctx, mode); err != nil {
		return slacktools.Attachment{}, err
	}
	return slacktools.Attachment{
		Header: "Mode set",
		Body:   []string{fmt.Sprintf("mode set to %s. schedule suspended for %s", mode, supervisor.OverrideDuration)},
	}, nil
}

func (r commandRunner) resume(ctx context.Context, _ ...string) (slacktools.Attachment, error) {
	if err := r.thermostat.ResumeSchedule(ctx); err != nil {
		return slacktools.Attachment{}, err
	}
	return slacktools.Attachment{Header: "Schedule resumed"}, nil
}
