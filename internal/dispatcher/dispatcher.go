// Package dispatcher runs side effects (device commands, notifications, saves) in the background, in the order they were submitted.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/device"
)

const (
	DefaultQueueSize    = 64
	DefaultTimeout      = 30 * time.Second
	DefaultDrainTimeout = 5 * time.Second
)

// Job is a unit of work.
type Job func(ctx context.Context) error

type namedJob struct {
	name string
	job  Job
}

// Stats counts the jobs processed by a Dispatcher.
type Stats struct {
	Completed uint64
	Failed    uint64
	Dropped   uint64
}

// Dispatcher executes submitted jobs one at a time, in submission order. Failed jobs are logged, not retried.
//
// Each job runs with a deadline of Timeout. DrainTimeout limits how long Run keeps executing queued jobs once its context is done.
type Dispatcher struct {
	Timeout      time.Duration
	DrainTimeout time.Duration
	queue        chan namedJob
	logger       *slog.Logger
	completed    atomic.Uint64
	failed       atomic.Uint64
	dropped      atomic.Uint64
}

func New(queueSize int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Timeout:      DefaultTimeout,
		DrainTimeout: DefaultDrainTimeout,
		queue:        make(chan namedJob, queueSize),
		logger:       logger,
	}
}

// Submit queues the job. It never blocks: if the queue is full, the job is dropped and Submit returns false.
func (d *Dispatcher) Submit(name string, job Job) bool {
	select {
	case d.queue <- namedJob{name: name, job: job}:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Error("queue full. job dropped", "job", name)
		return false
	}
}

// Run executes queued jobs until ctx is done. Jobs still queued at that point are executed before Run returns, as long as
// DrainTimeout allows. Jobs left after that are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("started")
	defer d.logger.Debug("stopped")
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx)
			return nil
		case j := <-d.queue:
			if ctx.Err() != nil {
				d.drain(ctx, j)
				return nil
			}
			d.execute(ctx, j)
		}
	}
}

// drain executes the pending job(s) and everything still queued, with a fresh deadline of DrainTimeout.
func (d *Dispatcher) drain(ctx context.Context, pending ...namedJob) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.DrainTimeout)
	defer cancel()
	run := func(j namedJob) {
		if ctx.Err() != nil {
			d.dropped.Add(1)
			d.logger.Warn("shutting down. job dropped", "job", j.name)
			return
		}
		d.execute(ctx, j)
	}
	for _, j := range pending {
		run(j)
	}
	for {
		select {
		case j := <-d.queue:
			run(j)
		default:
			return
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j namedJob) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	start := time.Now()
	err := j.job(ctx)
	if err == nil {
		d.completed.Add(1)
		d.logger.Debug("job completed", "job", j.name, slog.Duration("duration", time.Since(start)))
		return
	}

	d.failed.Add(1)
	var commandError *device.CommandError
	if errors.As(err, &commandError) {
		d.logger.Error("device rejected command", "job", j.name, "command", commandError.Command.String(), "err", commandError.Err)
		return
	}
	d.logger.Error("job failed", "job", j.name, "err", err)
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
