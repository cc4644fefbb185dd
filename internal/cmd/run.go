package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/app"
	"github.com/clambin/go-common/charmer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = cobra.Command{
	Use:   "run",
	Short: "Supervise the thermostat",
	RunE:  run,
}

var runArgs = charmer.Arguments{
	"thermostat.name":          {Default: "thermostat", Help: "Name of the thermostat"},
	"safety.min":               {Default: "", Help: "Minimum temperature while the thermostat is off (empty: not enforced)"},
	"safety.max":               {Default: "", Help: "Maximum temperature while the thermostat is off (empty: not enforced)"},
	"schedule.file":            {Default: "", Help: "Schedule file (YAML)"},
	"schedule.timezone":        {Default: "Local", Help: "Timezone of the schedule"},
	"device.kind":              {Default: "mqtt", Help: "Type of device (mqtt or tado)"},
	"device.mqtt.broker":       {Default: "tcp://localhost:1883", Help: "MQTT broker"},
	"device.mqtt.topic":        {Default: "thermostat", Help: "MQTT topic prefix of the device"},
	"device.mqtt.clientID":     {Default: "enhanced-thermostat", Help: "MQTT client ID"},
	"device.mqtt.timeout":      {Default: 10 * time.Second, Help: "MQTT connection timeout"},
	"device.tado.username":     {Default: "", Help: "Tadoº username"},
	"device.tado.password":     {Default: "", Help: "Tadoº password"},
	"device.tado.clientSecret": {Default: "", Help: "Tadoº client secret"},
	"device.tado.zone":         {Default: "", Help: "Tadoº zone (empty: first zone)"},
	"device.tado.interval":     {Default: 30 * time.Second, Help: "Tadoº poll interval"},
	"store.kind":               {Default: "file", Help: "Runtime storage (file or sqlite)"},
	"store.path":               {Default: ".storage", Help: "Runtime storage directory"},
	"api.addr":                 {Default: ":8080", Help: "Address of the API and /health endpoint"},
	"exporter.addr":            {Default: ":9090", Help: "Address of Prometheus exporter"},
	"slack.token":              {Default: "", Help: "Slack bot token (empty: no Slack notifications)"},
	"slack.appToken":           {Default: "", Help: "Slack app token (empty: no Slack commands)"},
	"slack.channel":            {Default: "", Help: "Slack channel for notifications (empty: all channels the bot is a member of)"},
	"slack.rate":               {Default: time.Minute, Help: "Minimum interval between Slack notifications"},
}

func init() {
	_ = charmer.SetPersistentFlags(&runCmd, viper.GetViper(), runArgs)
}

func run(cmd *cobra.Command, _ []string) error {
	logger := newLogger(os.Stderr, viper.GetViper())
	logger.Info("enhanced thermostat starting", "version", cmd.Root().Version)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, viper.GetViper(), registry, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return a.Run(ctx)
}
