package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between market-data requests.
const DefaultInterval = 10 * time.Second

// ErrReservation is returned when the limiter cannot grant a token at all.
var ErrReservation = errors.New("rate limiter reservation rejected")

// Clock abstracts time so the limiter can be driven in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Limiter enforces a minimum interval between calls, shared by every caller
// holding the same instance.
type Limiter struct {
	lim      *rate.Limiter
	clock    Clock
	interval time.Duration
}

// New creates a limiter allowing one call per interval. A non-positive
// interval disables limiting. A nil clock uses the wall clock.
func New(interval time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = RealClock()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{lim: rate.NewLimiter(limit, 1), clock: clock, interval: interval}
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration { return l.interval }

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	now := l.clock.Now()
	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		return ErrReservation
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	select {
	case <-l.clock.After(delay):
		return nil
	case <-ctx.Done():
		r.CancelAt(l.clock.Now())
		return ctx.Err()
	}
}
