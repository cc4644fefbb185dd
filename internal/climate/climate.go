// Package climate holds the values exchanged between the supervisor and the underlying device.
package climate

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// HVACMode is the operating mode requested from the device.
type HVACMode string

const (
	ModeOff      HVACMode = "off"
	ModeHeat     HVACMode = "heat"
	ModeCool     HVACMode = "cool"
	ModeHeatCool HVACMode = "heat_cool"
)

// Modes lists all supported modes.
var Modes = []HVACMode{ModeOff, ModeHeat, ModeCool, ModeHeatCool}

// ParseHVACMode converts a mode string (case-insensitive) into an HVACMode.
func ParseHVACMode(s string) (HVACMode, error) {
	m := HVACMode(strings.ToLower(strings.TrimSpace(s)))
	for _, mode := range Modes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid hvac mode: %q", s)
}

func (m HVACMode) String() string {
	return string(m)
}

func (m *HVACMode) UnmarshalText(text []byte) error {
	mode, err := ParseHVACMode(string(text))
	if err == nil {
		*m = mode
	}
	return err
}

// HVACAction is what the device is currently doing. The zero value means the device did not report an action.
type HVACAction string

const (
	ActionUnknown HVACAction = ""
	ActionOff     HVACAction = "off"
	ActionIdle    HVACAction = "idle"
	ActionHeating HVACAction = "heating"
	ActionCooling HVACAction = "cooling"
)

// ParseHVACAction converts an action string (case-insensitive) into an HVACAction. An empty string is ActionUnknown.
func ParseHVACAction(s string) (HVACAction, error) {
	a := HVACAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionUnknown, ActionOff, ActionIdle, ActionHeating, ActionCooling:
		return a, nil
	}
	return "", fmt.Errorf("invalid hvac action: %q", s)
}

func (a HVACAction) String() string {
	if a == ActionUnknown {
		return "unknown"
	}
	return string(a)
}

func (a *HVACAction) UnmarshalText(text []byte) error {
	action, err := ParseHVACAction(string(text))
	if err == nil {
		*a = action
	}
	return err
}

// Snapshot is the state reported by the device at one point in time.
type Snapshot struct {
	CurrentTemperature *float64   `json:"current_temperature,omitempty"`
	TargetTemperature  *float64   `json:"temperature,omitempty"`
	Mode               HVACMode   `json:"hvac_mode"`
	Action             HVACAction `json:"hvac_action,omitempty"`
	Unit               string     `json:"temperature_unit,omitempty"`
	Timestamp          time.Time  `json:"timestamp,omitempty"`
}

var _ slog.LogValuer = Snapshot{}

func (s Snapshot) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 5)
	attrs = append(attrs,
		slog.String("mode", s.Mode.String()),
		slog.String("action", s.Action.String()),
	)
	if s.CurrentTemperature != nil {
		attrs = append(attrs, slog.Float64("current", *s.CurrentTemperature))
	}
	if s.TargetTemperature != nil {
		attrs = append(attrs, slog.Float64("target", *s.TargetTemperature))
	}
	if s.Unit != "" {
		attrs = append(attrs, slog.String("unit", s.Unit))
	}
	return slog.GroupValue(attrs...)
}

// Command is a change requested from the device. Unset fields are left unchanged.
type Command struct {
	Mode        *HVACMode
	Temperature *float64
}

// SetMode returns a Command that only changes the mode.
func SetMode(mode HVACMode) Command {
	return Command{Mode: &mode}
}

// SetTemperature returns a Command that only changes the target temperature.
func SetTemperature(temperature float64) Command {
	return Command{Temperature: &temperature}
}

// WithTemperature adds a target temperature to the Command.
func (c Command) WithTemperature(temperature float64) Command {
	c.Temperature = &temperature
	return c
}

// IsZero returns true if the Command doesn't change anything.
func (c Command) IsZero() bool {
	return c.Mode == nil && c.Temperature == nil
}

func (c Command) String() string {
	parts := make([]string, 0, 2)
	if c.Mode != nil {
		parts = append(parts, "mode="+c.Mode.String())
	}
	if c.Temperature != nil {
		parts = append(parts, "temperature="+strconv.FormatFloat(*c.Temperature, 'f', -1, 64))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
