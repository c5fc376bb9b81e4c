package command

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum gap between two sends of one plugin.
const DefaultMinInterval = 500 * time.Millisecond

// throttle spaces outgoing sends at least interval apart. Concurrent
// callers are queued in reservation order.
type throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// wait blocks until the next send slot. When ctx ends first the slot is
// released and ctx's error returned.
func (t *throttle) wait(ctx context.Context) error {
	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := t.sleep(ctx, delay); err != nil {
		r.CancelAt(t.now())
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
