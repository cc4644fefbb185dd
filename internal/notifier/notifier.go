// Package notifier sends safety alerts to the user.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Title is the title of every alert.
const Title = "Enhanced Thermostat Safety Alert"

// Notifier sends an alert. Notify returns when the alert has been sent, or when ctx is done.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, msg string) {
	for _, l := range n {
		l.Notify(ctx, msg)
	}
}

var _ Notifier = SLogNotifier{}

type SLogNotifier struct {
	Logger *slog.Logger
}

func (s SLogNotifier) Notify(ctx context.Context, msg string) {
	s.Logger.InfoContext(ctx, msg, "title", Title)
}

var _ Notifier = &RateLimited{}

// RateLimited drops notifications sent faster than the configured rate.
type RateLimited struct {
	Notifier
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimited returns a Notifier that forwards at most burst notifications at once, and one per interval after that.
func NewRateLimited(n Notifier, interval time.Duration, burst int, logger *slog.Logger) *RateLimited {
	return &RateLimited{
		Notifier: n,
		limiter:  rate.NewLimiter(rate.Every(interval), burst),
		logger:   logger,
	}
}

func (r *RateLimited) Notify(ctx context.Context, msg string) {
	if !r.limiter.Allow() {
		r.logger.Warn("notification dropped: rate limit exceeded", "msg", msg)
		return
	}
	r.Notifier.Notify(ctx, msg)
}
