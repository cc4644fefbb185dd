// Package safety keeps the room temperature within hard bounds while the thermostat is switched off.
package safety

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/clambin/enhanced-thermostat/internal/climate"
)

// Hysteresis is how far the temperature must move back inside the bounds before safety mode is released.
const Hysteresis = 1.0

// State is the guard's state. When Active, Mode is the mode the guard switched the device to.
type State struct {
	Active bool             `json:"active"`
	Mode   climate.HVACMode `json:"mode,omitempty"`
}

var _ slog.LogValuer = State{}

func (s State) LogValue() slog.Value {
	if !s.Active {
		return slog.StringValue("normal")
	}
	return slog.StringValue("safety_" + s.Mode.String())
}

// Bounds are the safety temperatures. A nil bound is not enforced.
type Bounds struct {
	Min *float64
	Max *float64
}

// Validate returns an error if both bounds are set and Min is not below Max.
func (b Bounds) Validate() error {
	if b.Min != nil && b.Max != nil && *b.Min >= *b.Max {
		return fmt.Errorf("safety: min (%.1f) must be lower than max (%.1f)", *b.Min, *b.Max)
	}
	return nil
}

// Result is the outcome of a Transition: the new state, the command to send to the device (if any) and the notification to
// send (if any).
type Result struct {
	State        State
	Command      *climate.Command
	Notification string
}

// Transition evaluates the guard for a device update with the reported mode and temperature.
//
// In normal state, a device that is switched off and whose temperature drops below Min (or rises above Max) is switched to heating
// (or cooling), targeting the bound. In safety state, the guard releases when the user selects another mode, or when the temperature
// returns Hysteresis degrees inside the bound, in which case the device is switched off again.
func Transition(state State, mode climate.HVACMode, temperature float64, bounds Bounds) Result {
	if state.Active {
		return release(state, mode, temperature, bounds)
	}
	if mode != climate.ModeOff {
		return Result{State: state}
	}
	switch {
	case bounds.Min != nil && temperature < *bounds.Min:
		command := climate.SetMode(climate.ModeHeat).WithTemperature(*bounds.Min)
		return Result{
			State:        State{Active: true, Mode: climate.ModeHeat},
			Command:      &command,
			Notification: fmt.Sprintf("Safety heating activated. Current temperature is %.1f°, target is %.1f°.", temperature, *bounds.Min),
		}
	case bounds.Max != nil && temperature > *bounds.Max:
		command := climate.SetMode(climate.ModeCool).WithTemperature(*bounds.Max)
		return Result{
			State:        State{Active: true, Mode: climate.ModeCool},
			Command:      &command,
			Notification: fmt.Sprintf("Safety cooling activated. Current temperature is %.1f°, target is %.1f°.", temperature, *bounds.Max),
		}
	}
	return Result{State: state}
}

func release(state State, mode climate.HVACMode, temperature float64, bounds Bounds) Result {
	if mode != state.Mode {
		return Result{Notification: "Safety mode deactivated due to manual override."}
	}
	off := climate.SetMode(climate.ModeOff)
	switch state.Mode {
	case climate.ModeHeat:
		if bounds.Min != nil && temperature >= *bounds.Min+Hysteresis {
			return Result{Command: &off, Notification: fmt.Sprintf("Safety heating turned off. Temperature is now %.1f°.", temperature)}
		}
	case climate.ModeCool:
		if bounds.Max != nil && temperature <= *bounds.Max-Hysteresis {
			return Result{Command: &off, Notification: fmt.Sprintf("Safety cooling turned off. Temperature is now %.1f°.", temperature)}
		}
	}
	return Result{State: state}
}

// ErrNoTemperature is returned by Guard.Evaluate when the device did not report a temperature.
var ErrNoTemperature = errors.New("no current temperature")

// Guard holds the safety bounds and the current State.
//
// Guard is not safe for concurrent use.
type Guard struct {
	Bounds Bounds
	state  State
}

// Evaluate runs Transition for the snapshot and records the new state. A snapshot without a current temperature is not evaluated.
func (g *Guard) Evaluate(snapshot climate.Snapshot) (Result, error) {
	if snapshot.CurrentTemperature == nil {
		return Result{State: g.state}, ErrNoTemperature
	}
	result := Transition(g.state, snapshot.Mode, *snapshot.CurrentTemperature, g.Bounds)
	g.state = result.State
	return result, nil
}

// State returns the guard's current state.
func (g *Guard) State() State {
	return g.state
}
