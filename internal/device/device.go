// Package device defines how the supervisor talks to the underlying heating/cooling device.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/clambin/enhanced-thermostat/internal/climate"
)

// Controller sends commands to the device.
type Controller interface {
	SetMode(ctx context.Context, mode climate.HVACMode) error
	SetTemperature(ctx context.Context, temperature float64) error
}

// Observer delivers a Snapshot each time the device's state changes.
type Observer interface {
	Subscribe() chan climate.Snapshot
	Unsubscribe(chan climate.Snapshot)
}

// Device is a device that can be observed and controlled.
type Device interface {
	Controller
	Observer
	Run(ctx context.Context) error
}

// Apply sends the command to the device: first the mode, then the temperature.
func Apply(ctx context.Context, c Controller, command climate.Command) error {
	if command.Mode != nil {
		if err := c.SetMode(ctx, *command.Mode); err != nil {
			return &CommandError{Command: command, Err: err}
		}
	}
	if command.Temperature != nil {
		if err := c.SetTemperature(ctx, *command.Temperature); err != nil {
			return &CommandError{Command: command, Err: err}
		}
	}
	return nil
}

var _ error = &CommandError{}

// CommandError is returned when the device rejects a command.
type CommandError struct {
	Command climate.Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("device command %s failed: %s", e.Command, e.Err.Error())
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Is(err error) bool {
	var commandError *CommandError
	return errors.As(err, &commandError)
}

// ErrUnsupported is returned by a Controller when the device does not support the requested mode.
var ErrUnsupported = errors.New("not supported by device")
