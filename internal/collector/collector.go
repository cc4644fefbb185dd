// Package collector exports the thermostat's state as Prometheus metrics.
package collector

import (
	"log/slog"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/dispatcher"
	"github.com/clambin/enhanced-thermostat/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	currentTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "", "current_temperature_celsius"),
		"Current temperature reported by the device in degrees celsius",
		[]string{"name"},
		nil,
	)
	targetTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "", "target_temperature_celsius"),
		"Target temperature reported by the device in degrees celsius",
		[]string{"name"},
		nil,
	)
	hvacMode = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "", "hvac_mode"),
		"Current mode of the device. Always 1. Label mode specifies the mode",
		[]string{"name", "mode"},
		nil,
	)
	hvacAction = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "", "hvac_action"),
		"Current action of the device. Always 1. Label action specifies the action",
		[]string{"name", "action"},
		nil,
	)
	safetyActive = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "safety", "active"),
		"1 if the thermostat is in safety mode",
		[]string{"name"},
		nil,
	)
	scheduleOverride = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "schedule", "override"),
		"1 if the schedule is suspended by a manual change",
		[]string{"name"},
		nil,
	)
	runtimeToday = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "runtime", "today_hours"),
		"Hours spent heating or cooling today",
		[]string{"name", "kind"},
		nil,
	)
	runtimeTotal = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "runtime", "hours_total"),
		"Total hours spent heating or cooling",
		[]string{"name", "kind"},
		nil,
	)
	jobs = prometheus.NewDesc(
		prometheus.BuildFQName("thermostat", "dispatcher", "jobs_total"),
		"Number of background jobs processed, by queue and result",
		[]string{"queue", "result"},
		nil,
	)
)

// StatusReader returns the thermostat's state. *supervisor.Supervisor implements it.
type StatusReader interface {
	Status() supervisor.Status
}

// StatsReader returns the dispatcher's statistics. *dispatcher.Dispatcher implements it.
type StatsReader interface {
	Stats() dispatcher.Stats
}

var _ prometheus.Collector = &Collector{}

// Collector reports the Supervisor's state and the statistics of each Dispatcher, labelled by the map's key.
type Collector struct {
	Supervisor  StatusReader
	Dispatchers map[string]StatsReader
	Logger      *slog.Logger
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- currentTemperature
	ch <- targetTemperature
	ch <- hvacMode
	ch <- hvacAction
	ch <- safetyActive
	ch <- scheduleOverride
	ch <- runtimeToday
	ch <- runtimeTotal
	ch <- jobs
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	status := c.Supervisor.Status()
	c.collectDevice(ch, status)
	c.collectSupervisor(ch, status)
	for queue, d := range c.Dispatchers {
		c.collectDispatcher(ch, queue, d)
	}
}

func (c *Collector) collectDevice(ch chan<- prometheus.Metric, status supervisor.Status) {
	if !status.Ready() {
		c.Logger.Debug("no device update yet. skipping device metrics")
		return
	}
	snapshot := status.Snapshot
	if snapshot.CurrentTemperature != nil {
		ch <- prometheus.MustNewConstMetric(currentTemperature, prometheus.GaugeValue, *snapshot.CurrentTemperature, status.Name)
	}
	if snapshot.TargetTemperature != nil {
		ch <- prometheus.MustNewConstMetric(targetTemperature, prometheus.GaugeValue, *snapshot.TargetTemperature, status.Name)
	}
	ch <- prometheus.MustNewConstMetric(hvacMode, prometheus.GaugeValue, 1, status.Name, snapshot.Mode.String())
	if snapshot.Action != climate.ActionUnknown {
		ch <- prometheus.MustNewConstMetric(hvacAction, prometheus.GaugeValue, 1, status.Name, snapshot.Action.String())
	}
}

func (c *Collector) collectSupervisor(ch chan<- prometheus.Metric, status supervisor.Status) {
	ch <- prometheus.MustNewConstMetric(safetyActive, prometheus.GaugeValue, boolValue(status.Safety.Active), status.Name)
	ch <- prometheus.MustNewConstMetric(scheduleOverride, prometheus.GaugeValue, boolValue(status.Schedule.OverrideUntil != nil), status.Name)

	ch <- prometheus.MustNewConstMetric(runtimeToday, prometheus.GaugeValue, status.Today.HeatingHours, status.Name, "heating")
	ch <- prometheus.MustNewConstMetric(runtimeToday, prometheus.GaugeValue, status.Today.CoolingHours, status.Name, "cooling")

	totals := status.Runtime.Totals()
	ch <- prometheus.MustNewConstMetric(runtimeTotal, prometheus.CounterValue, totals.HeatingHours, status.Name, "heating")
	ch <- prometheus.MustNewConstMetric(runtimeTotal, prometheus.CounterValue, totals.CoolingHours, status.Name, "cooling")
}

func (c *Collector) collectDispatcher(ch chan<- prometheus.Metric, queue string, d StatsReader) {
	stats := d.Stats()
	ch <- prometheus.MustNewConstMetric(jobs, prometheus.CounterValue, float64(stats.Completed), queue, "completed")
	ch <- prometheus.MustNewConstMetric(jobs, prometheus.CounterValue, float64(stats.Failed), queue, "failed")
	ch <- prometheus.MustNewConstMetric(jobs, prometheus.CounterValue, float64(stats.Dropped), queue, "dropped")
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
