// Package ticker delivers the wall-clock time at a fixed schedule, by default at the start of every minute.
package ticker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// EveryMinute fires at the start of every minute.
const EveryMinute = "* * * * *"

// Ticker sends the current time on C() each time its schedule fires. If the previous tick hasn't been consumed yet, the new tick
// is dropped, so the receiver never processes two ticks at once.
type Ticker struct {
	cron     *cron.Cron
	location *time.Location
	ch       chan time.Time
	logger   *slog.Logger
	stop     sync.Once
}

// New returns a Ticker for the provided cron spec (standard 5-field syntax, or a descriptor like "@every 10s"). Times are
// delivered in the provided location.
func New(spec string, location *time.Location, logger *slog.Logger) (*Ticker, error) {
	t := Ticker{
		cron:     cron.New(cron.WithLocation(location)),
		location: location,
		ch:       make(chan time.Time, 1),
		logger:   logger,
	}
	if _, err := t.cron.AddFunc(spec, t.tick); err != nil {
		return nil, fmt.Errorf("ticker: invalid schedule %q: %w", spec, err)
	}
	return &t, nil
}

// C returns the channel on which ticks are delivered.
func (t *Ticker) C() <-chan time.Time {
	return t.ch
}

// Run starts the Ticker and stops it when ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	t.cron.Start()
	t.logger.Debug("started")
	<-ctx.Done()
	t.Stop()
	t.logger.Debug("stopped")
	return nil
}

// Stop stops the Ticker. Once Stop returns, no more ticks are delivered, including any tick that was not yet consumed.
// Calling Stop more than once is a no-op.
func (t *Ticker) Stop() {
	t.stop.Do(func() {
		<-t.cron.Stop().Done()
		select {
		case <-t.ch:
		default:
		}
	})
}

func (t *Ticker) tick() {
	select {
	case t.ch <- time.Now().In(t.location):
	default:
		t.logger.Warn("previous tick still being processed. tick dropped")
	}
}
