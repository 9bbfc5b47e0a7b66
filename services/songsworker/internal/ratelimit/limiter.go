// Package ratelimit gates outbound requests so that consecutive permits are
// at least one interval apart.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	l *rate.Limiter
	// OnWait, when set, observes how long each successful Wait blocked.
	OnWait func(time.Duration)
}

// NewInterval creates a limiter issuing one permit per interval with no
// burst. The first permit is available immediately.
func NewInterval(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Limiter{l: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until a permit is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.l == nil {
		return nil
	}
	start := time.Now()
	if err := l.l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// rate refuses up front a wait that would outlive the deadline,
		// while ctx itself is still live.
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}
	if l.OnWait != nil {
		l.OnWait(time.Since(start))
	}
	return nil
}
