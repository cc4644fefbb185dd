// Package tado controls a single tado° heating zone.
//
// tado° zones only heat: a zone is either off (an overlay at 5°C) or heating towards a target temperature. Cooling modes are
// rejected with device.ErrUnsupported.
package tado

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/device"
	"github.com/clambin/enhanced-thermostat/pkg/pubsub"
	"github.com/clambin/tado"
)

const (
	// OffTemperature is the overlay temperature that switches off a zone.
	OffTemperature = 5.0
	// DefaultTemperature is the target used when heating is switched on and no previous target is known.
	DefaultTemperature = 20.0
	unit               = "°C"
)

// API is the part of the tado client used by Device.
type API interface {
	GetZones(context.Context) (tado.Zones, error)
	GetZoneInfo(context.Context, int) (tado.ZoneInfo, error)
	SetZoneOverlay(context.Context, int, float64) error
}

var _ device.Device = &Device{}

// Device polls a tado° zone and publishes a Snapshot each time its state changes.
type Device struct {
	*pubsub.Publisher[climate.Snapshot]
	api      API
	zoneName string
	interval time.Duration
	logger   *slog.Logger
	refresh  chan struct{}
	lock     sync.Mutex
	zoneID   int
	target   float64
	last     *climate.Snapshot
}

func New(api API, zoneName string, interval time.Duration, logger *slog.Logger) *Device {
	return &Device{
		Publisher: pubsub.New[climate.Snapshot](logger),
		api:       api,
		zoneName:  zoneName,
		interval:  interval,
		logger:    logger,
		refresh:   make(chan struct{}, 1),
	}
}

func (d *Device) Run(ctx context.Context) error {
	zoneID, err := d.findZone(ctx)
	if err != nil {
		return err
	}
	d.lock.Lock()
	d.zoneID = zoneID
	d.lock.Unlock()

	d.logger.Debug("started", "zone", d.zoneName, "zoneID", zoneID, slog.Duration("interval", d.interval))
	defer d.logger.Debug("stopped")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err = d.poll(ctx); err != nil {
			d.logger.Error("failed to get zone info", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-d.refresh:
		}
	}
}

// Refresh polls the zone immediately.
func (d *Device) Refresh() {
	select {
	case d.refresh <- struct{}{}:
	default:
	}
}

func (d *Device) findZone(ctx context.Context) (int, error) {
	zones, err := d.api.GetZones(ctx)
	if err != nil {
		return 0, fmt.Errorf("tado: get zones: %w", err)
	}
	for _, zone := range zones {
		if d.zoneName == "" || zone.Name == d.zoneName {
			return zone.ID, nil
		}
	}
	return 0, fmt.Errorf("tado: zone %q not found", d.zoneName)
}

func (d *Device) poll(ctx context.Context) error {
	d.lock.Lock()
	zoneID := d.zoneID
	d.lock.Unlock()

	zoneInfo, err := d.api.GetZoneInfo(ctx, zoneID)
	if err != nil {
		return err
	}
	snapshot := toSnapshot(zoneInfo, time.Now())

	d.lock.Lock()
	changed := d.last == nil || !sameState(*d.last, snapshot)
	d.last = &snapshot
	if snapshot.TargetTemperature != nil {
		d.target = *snapshot.TargetTemperature
	}
	d.lock.Unlock()

	if changed {
		d.logger.Debug("zone state changed", "snapshot", snapshot)
		d.Publish(snapshot)
	}
	return nil
}

func toSnapshot(zoneInfo tado.ZoneInfo, now time.Time) climate.Snapshot {
	current := zoneInfo.SensorDataPoints.InsideTemperature.Celsius
	snapshot := climate.Snapshot{
		CurrentTemperature: &current,
		Mode:               climate.ModeOff,
		Action:             climate.ActionOff,
		Unit:               unit,
		Timestamp:          now,
	}
	if zoneInfo.Setting.Power == "ON" {
		target := zoneInfo.Setting.Temperature.Celsius
		snapshot.TargetTemperature = &target
		snapshot.Mode = climate.ModeHeat
		snapshot.Action = climate.ActionIdle
		if zoneInfo.ActivityDataPoints.HeatingPower.Percentage > 0 {
			snapshot.Action = climate.ActionHeating
		}
	}
	return snapshot
}

func sameState(a, b climate.Snapshot) bool {
	return a.Mode == b.Mode &&
		a.Action == b.Action &&
		equalTemperature(a.CurrentTemperature, b.CurrentTemperature) &&
		equalTemperature(a.TargetTemperature, b.TargetTemperature)
}

func equalTemperature(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (d *Device) SetMode(ctx context.Context, mode climate.HVACMode) error {
	d.lock.Lock()
	zoneID, target := d.zoneID, d.target
	d.lock.Unlock()

	var temperature float64
	switch mode {
	case climate.ModeOff:
		temperature = OffTemperature
	case climate.ModeHeat:
		temperature = target
		if temperature <= OffTemperature {
			temperature = DefaultTemperature
		}
	default:
		return fmt.Errorf("mode %s: %w", mode, device.ErrUnsupported)
	}
	return d.setOverlay(ctx, zoneID, temperature)
}

func (d *Device) SetTemperature(ctx context.Context, temperature float64) error {
	d.lock.Lock()
	zoneID := d.zoneID
	d.lock.Unlock()
	return d.setOverlay(ctx, zoneID, temperature)
}

func (d *Device) setOverlay(ctx context.Context, zoneID int, temperature float64) error {
	if err := d.api.SetZoneOverlay(ctx, zoneID, temperature); err != nil {
		return fmt.Errorf("tado: set overlay: %w", err)
	}
	if temperature > OffTemperature {
		d.lock.Lock()
		d.target = temperature
		d.lock.Unlock()
	}
	d.Refresh()
	return nil
}
