package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/clambin/enhanced-thermostat/internal/device"
	"github.com/clambin/enhanced-thermostat/internal/device/mqtt"
	devtado "github.com/clambin/enhanced-thermostat/internal/device/tado"
	"github.com/clambin/tado"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// newDevice connects to the configured device. If registry is not nil, calls to the tado API are measured.
func newDevice(cfg *viper.Viper, registry prometheus.Registerer, logger *slog.Logger) (device.Device, io.Closer, error) {
	switch kind := cfg.GetString("device.kind"); kind {
	case "mqtt":
		client, err := mqtt.Connect(
			cfg.GetString("device.mqtt.broker"),
			cfg.GetString("device.mqtt.clientID"),
			cfg.GetDuration("device.mqtt.timeout"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("mqtt: %w", err)
		}
		return mqtt.New(client, cfg.GetString("device.mqtt.topic"), logger), mqttCloser{client}, nil
	case "tado":
		api, err := tado.New(
			cfg.GetString("device.tado.username"),
			cfg.GetString("device.tado.password"),
			cfg.GetString("device.tado.clientSecret"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("tado: %w", err)
		}
		if registry != nil {
			m := newRequestMetrics("tado")
			registry.MustRegister(m)
			api.HTTPClient = &http.Client{Transport: instrumentedTransport(api.HTTPClient.Transport, m)}
		}
		return devtado.New(api, cfg.GetString("device.tado.zone"), cfg.GetDuration("device.tado.interval"), logger), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("invalid device.kind %q", kind)
	}
}

type mqttCloser struct {
	client paho.Client
}

func (c mqttCloser) Close() error {
	c.client.Disconnect(250)
	return nil
}
