package harvest

import (
	"context"
	"errors"
	"time"
)

// FixedRetryPolicy retries a bounded number of times with a constant
// backoff between attempts. Listing-page fetches use it; detail fetches
// deliberately do not retry, to bound total run time.
type FixedRetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NewFixedRetryPolicy builds the default discovery policy.
func NewFixedRetryPolicy() *FixedRetryPolicy {
	return &FixedRetryPolicy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
}

// ShouldRetry decides whether the error warrants another attempt.
// attempt is 1-based: the value for the attempt that just failed.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Do runs fn until it succeeds, the policy gives up, or ctx is done.
// The backoff pause itself is cancelable.
func (p *FixedRetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		timer := time.NewTimer(p.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
