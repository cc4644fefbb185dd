package device_test

import (
	"context"
	"errors"
	"testing"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		command climate.Command
		failOn  string
		want    []string
		wantErr assert.ErrorAssertionFunc
	}{
		{name: "none", wantErr: assert.NoError},
		{name: "mode", command: climate.SetMode(climate.ModeHeat), want: []string{"mode=heat"}, wantErr: assert.NoError},
		{name: "temperature", command: climate.SetTemperature(19.5), want: []string{"temperature=19.5"}, wantErr: assert.NoError},
		{
			name:    "both",
			command: climate.SetMode(climate.ModeCool).WithTemperature(25),
			want:    []string{"mode=cool", "temperature=25"},
			wantErr: assert.NoError,
		},
		{
			name:    "mode fails",
			command: climate.SetMode(climate.ModeCool).WithTemperature(25),
			failOn:  "mode",
			wantErr: assert.Error,
		},
		{
			name:    "temperature fails",
			command: climate.SetMode(climate.ModeCool).WithTemperature(25),
			failOn:  "temperature",
			want:    []string{"mode=cool"},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := fakeController{failOn: tt.failOn}
			err := device.Apply(context.Background(), &c, tt.command)
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, c.calls)
			if err != nil {
				var commandError *device.CommandError
				require.True(t, errors.As(err, &commandError))
				assert.Equal(t, tt.command, commandError.Command)
				assert.Equal(t, "device command mode=cool,temperature=25 failed: rejected", err.Error())
			}
		})
	}
}

var _ device.Controller = &fakeController{}

type fakeController struct {
	failOn string
	calls  []string
}

func (f *fakeController) SetMode(_ context.Context, mode climate.HVACMode) error {
	if f.failOn == "mode" {
		return errors.New("rejected")
	}
	f.calls = append(f.calls, "mode="+mode.String())
	return nil
}

func (f *fakeController) SetTemperature(_ context.Context, temperature float64) error {
	if f.failOn == "temperature" {
		return errors.New("rejected")
	}
	f.calls = append(f.calls, climate.SetTemperature(temperature).String())
	return nil
}
