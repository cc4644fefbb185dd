// Package mqtt controls a thermostat that reports its state, and accepts commands, over MQTT.
//
// The device publishes its state as a JSON climate.Snapshot on <topic>/state. Commands are published as plain-text payloads on
// <topic>/set/hvac_mode and <topic>/set/temperature.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/device"
	"github.com/clambin/enhanced-thermostat/pkg/pubsub"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of the paho client used by Device.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// Connect connects to the broker.
func Connect(broker, clientID string, timeout time.Duration) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return client, nil
}

var _ device.Device = &Device{}

type Device struct {
	*pubsub.Publisher[climate.Snapshot]
	Timeout time.Duration
	client  Client
	topic   string
	logger  *slog.Logger
}

func New(client Client, topic string, logger *slog.Logger) *Device {
	return &Device{
		Publisher: pubsub.New[climate.Snapshot](logger),
		Timeout:   5 * time.Second,
		client:    client,
		topic:     topic,
		logger:    logger,
	}
}

func (d *Device) StateTopic() string {
	return d.topic + "/state"
}

// Run subscribes to the device's state topic and publishes each state update to all subscribers, until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	if err := d.wait(d.client.Subscribe(d.StateTopic(), 1, d.onMessage)); err != nil {
		return fmt.Errorf("subscribe %s: %w", d.StateTopic(), err)
	}
	d.logger.Debug("started", "topic", d.StateTopic())
	defer d.logger.Debug("stopped")

	<-ctx.Done()
	if err := d.wait(d.client.Unsubscribe(d.StateTopic())); err != nil {
		d.logger.Warn("failed to unsubscribe", "err", err)
	}
	return nil
}

func (d *Device) onMessage(_ paho.Client, msg paho.Message) {
	snapshot, err := parseSnapshot(msg.Payload())
	if err != nil {
		d.logger.Warn("invalid state message", "topic", msg.Topic(), "err", err)
		return
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}
	d.logger.Debug("state received", "snapshot", snapshot)
	d.Publish(snapshot)
}

func parseSnapshot(payload []byte) (climate.Snapshot, error) {
	var snapshot climate.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return snapshot, err
	}
	if snapshot.Mode == "" {
		return snapshot, errors.New("missing hvac_mode")
	}
	return snapshot, nil
}

func (d *Device) SetMode(_ context.Context, mode climate.HVACMode) error {
	return d.send("hvac_mode", mode.String())
}

func (d *Device) SetTemperature(_ context.Context, temperature float64) error {
	return d.send("temperature", strconv.FormatFloat(temperature, 'f', -1, 64))
}

func (d *Device) send(attribute string, value string) error {
	topic := d.topic + "/set/" + attribute
	if err := d.wait(d.client.Publish(topic, 1, false, value)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (d *Device) wait(token paho.Token) error {
	if !token.WaitTimeout(d.Timeout) {
		return fmt.Errorf("timeout")
	}
	return token.Error()
}
