// Package backoff is the one retry policy used everywhere a transient failure
// is retried: the validation service's storage retries and the station's sync
// reconciler share it, so retry behavior is tuned in a single place.
package backoff

import (
	"context"
	"time"
)

// Policy caps retries at MaxAttempts total attempts with exponential delays
// between them, starting at BaseDelay and never exceeding MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is the policy applied when no override is configured: five
// attempts, half a second doubling up to thirty seconds.
var Default = Policy{
	MaxAttempts: 5,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    30 * time.Second,
}

// Delay returns the pause before the given retry. attempt is 1-based: the
// delay after the first failed attempt is Delay(1) = BaseDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op up to MaxAttempts times, sleeping Delay between attempts while
// retryable reports the error as transient. Definitive errors and context
// cancellation are returned immediately; the last transient error is returned
// once the attempt budget is spent.
func (p Policy) Do(ctx context.Context, op func() error, retryable func(error) bool) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
