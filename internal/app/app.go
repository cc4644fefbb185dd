// Package app builds the thermostat's components from configuration and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/api"
	"github.com/clambin/enhanced-thermostat/internal/bot"
	"github.com/clambin/enhanced-thermostat/internal/collector"
	"github.com/clambin/enhanced-thermostat/internal/device"
	"github.com/clambin/enhanced-thermostat/internal/dispatcher"
	"github.com/clambin/enhanced-thermostat/internal/health"
	"github.com/clambin/enhanced-thermostat/internal/notifier"
	"github.com/clambin/enhanced-thermostat/internal/safety"
	"github.com/clambin/enhanced-thermostat/internal/schedule"
	"github.com/clambin/enhanced-thermostat/internal/store"
	"github.com/clambin/enhanced-thermostat/internal/supervisor"
	"github.com/clambin/enhanced-thermostat/internal/ticker"
	"github.com/clambin/go-common/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	// SQLiteFilename is the name of the database created in store.path when store.kind is sqlite.
	SQLiteFilename = "enhanced_thermostat.db"

	slackTimeout = 10 * time.Second
)

// Task is a long-running component.
type Task interface {
	Run(ctx context.Context) error
}

// Registry registers and serves the application's metrics. *prometheus.Registry implements it.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

type App struct {
	Supervisor *supervisor.Supervisor
	tasks      []Task
	closers    []io.Closer
	logger     *slog.Logger
}

// New creates the device and the runtime store configured in cfg and builds the application around them.
func New(ctx context.Context, cfg *viper.Viper, registry Registry, logger *slog.Logger) (*App, error) {
	dev, devCloser, err := newDevice(cfg, registry, logger.With("component", "device"))
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	st, stCloser, err := newStore(ctx, cfg)
	if err != nil {
		_ = devCloser.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	a, err := build(cfg, dev, st, registry, logger)
	if err != nil {
		_ = devCloser.Close()
		_ = stCloser.Close()
		return nil, err
	}
	a.closers = append(a.closers, devCloser, stCloser)
	return a, nil
}

func build(cfg *viper.Viper, dev device.Device, st store.Store, registry Registry, l *slog.Logger) (*App, error) {
	location, err := time.LoadLocation(cfg.GetString("schedule.timezone"))
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	bounds, err := safetyBounds(cfg)
	if err != nil {
		return nil, err
	}

	a := App{logger: l}
	a.tasks = append(a.tasks, dev)

	// Side effects: alerts get their own queue, so a slow notification channel doesn't hold up device commands
	d := dispatcher.New(dispatcher.DefaultQueueSize, l.With("component", "dispatcher", "queue", "commands"))
	alerts := dispatcher.New(dispatcher.DefaultQueueSize, l.With("component", "dispatcher", "queue", "alerts"))
	a.tasks = append(a.tasks, d, alerts)

	// Schedule
	definition, watcher := loadSchedule(cfg.GetString("schedule.file"), l.With("component", "schedule"))
	if watcher != nil {
		a.tasks = append(a.tasks, watcher)
	}

	// Supervisor
	a.Supervisor, err = supervisor.New(
		supervisor.Config{
			Name:     cfg.GetString("thermostat.name"),
			Bounds:   bounds,
			Location: location,
			Schedule: definition,
		},
		dev,
		st,
		makeNotifier(cfg, l),
		d,
		l.With("component", "supervisor"),
	)
	if err != nil {
		return nil, err
	}
	a.Supervisor.Alerts = alerts
	a.tasks = append(a.tasks, a.Supervisor)
	if watcher != nil {
		a.Supervisor.ScheduleUpdates = watcher.Updates()
	}

	// Ticker
	tk, err := ticker.New(ticker.EveryMinute, location, l.With("component", "ticker"))
	if err != nil {
		return nil, err
	}
	a.Supervisor.Ticks = tk.C()
	a.tasks = append(a.tasks, tk)

	// Collector
	if registry != nil {
		registry.MustRegister(&collector.Collector{
			Supervisor:  a.Supervisor,
			Dispatchers: map[string]collector.StatsReader{"commands": d, "alerts": alerts},
			Logger:      l.With("component", "collector"),
		})
		a.tasks = append(a.tasks, newHTTPServer(
			"prometheus",
			cfg.GetString("exporter.addr"),
			metricsHandler(registry),
			l.With("component", "prometheus"),
		))
	}

	// API & health endpoint
	h := health.New(a.Supervisor, l.With("component", "health"))
	if r, ok := dev.(health.Refresher); ok {
		h.Refresher = r
	}
	apiHandler := api.New(a.Supervisor, h, l.With("component", "api"))
	if registry != nil {
		m := newRequestMetrics("api")
		registry.MustRegister(m)
		apiHandler = middleware.WithRequestMetrics(m)(apiHandler)
	}
	a.tasks = append(a.tasks, newHTTPServer("api", cfg.GetString("api.addr"), apiHandler, l.With("component", "api")))

	// Slackbot
	if token, appToken := cfg.GetString("slack.token"), cfg.GetString("slack.appToken"); token != "" && appToken != "" {
		client := socketmode.New(slack.New(token, slack.OptionAppLevelToken(appToken)))
		a.tasks = append(a.tasks, bot.New(a.Supervisor, socketmode.NewSocketmodeHandler(client), l.With("component", "bot")))
	}

	return &a, nil
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Run runs all tasks until ctx is done or a task fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("enhanced thermostat starting", "tasks", len(a.tasks))
	defer a.logger.Info("enhanced thermostat stopped")

	g, ctx := errgroup.WithContext(ctx)
	for _, task := range a.tasks {
		g.Go(func() error { return task.Run(ctx) })
	}
	err := g.Wait()

	for _, c := range a.closers {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	return err
}

func safetyBounds(cfg *viper.Viper) (safety.Bounds, error) {
	var bounds safety.Bounds
	var err error
	if bounds.Min, err = optionalFloat(cfg, "safety.min"); err != nil {
		return bounds, err
	}
	if bounds.Max, err = optionalFloat(cfg, "safety.max"); err != nil {
		return bounds, err
	}
	return bounds, bounds.Validate()
}

func optionalFloat(cfg *viper.Viper, key string) (*float64, error) {
	s := cfg.GetString(key)
	if s == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid temperature %q", key, s)
	}
	return &value, nil
}

// loadSchedule loads the schedule in path and returns a Watcher to reload it when it changes. An invalid schedule disables
// scheduling until it is fixed.
func loadSchedule(path string, logger *slog.Logger) (schedule.Definition, *schedule.Watcher) {
	if path == "" {
		logger.Warn("no schedule configured")
		return nil, nil
	}
	definition, err := schedule.LoadFile(path)
	if err != nil {
		logger.Error("failed to load schedule. scheduling disabled", "err", err)
		definition = nil
	}
	return definition, schedule.NewWatcher(path, logger)
}

func makeNotifier(cfg *viper.Viper, l *slog.Logger) notifier.Notifier {
	notifiers := notifier.Notifiers{notifier.SLogNotifier{Logger: l.With("component", "notifier")}}
	if token := cfg.GetString("slack.token"); token != "" {
		s := notifier.SlackNotifier{
			Logger:      l.With("component", "slack"),
			Channel:     cfg.GetString("slack.channel"),
			SlackSender: slack.New(token, slack.OptionHTTPClient(&http.Client{Timeout: slackTimeout})),
		}
		notifiers = append(notifiers, notifier.NewRateLimited(&s, cfg.GetDuration("slack.rate"), 3, l.With("component", "slack")))
	}
	return notifiers
}

func newStore(ctx context.Context, cfg *viper.Viper) (store.Store, io.Closer, error) {
	key := store.Key(cfg.GetString("thermostat.name"))
	dir := cfg.GetString("store.path")
	switch kind := cfg.GetString("store.kind"); kind {
	case "file":
		return store.NewFile(dir, key), nopCloser{}, nil
	case "sqlite":
		s, err := store.OpenSQLite(ctx, filepath.Join(dir, SQLiteFilename), key)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("invalid store.kind %q", kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
