package service

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy describes how a failing operation is retried.
// The zero value makes a single attempt.
type RetryPolicy struct {
	// Attempts is the total number of attempts, including the first one
	Attempts int
	// The delay between two attempts is uniformly drawn in [MinDelay, MaxDelay]
	MinDelay time.Duration
	MaxDelay time.Duration

	// Sleep waits for d or until ctx is done (default: timer)
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a number in [0, 1) (default: math/rand)
	Jitter func() float64
	// OnRetry is called after a failed attempt that will be retried
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy is used to fetch remote rasters: 3 attempts, 2 to 3 seconds apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, MinDelay: 2 * time.Second, MaxDelay: 3 * time.Second}
}

// Delay returns the (jittered) delay before the next attempt
func (p RetryPolicy) Delay() time.Duration {
	if p.MaxDelay <= p.MinDelay {
		return p.MinDelay
	}
	jitter := rand.Float64
	if p.Jitter != nil {
		jitter = p.Jitter
	}
	return p.MinDelay + time.Duration(jitter()*float64(p.MaxDelay-p.MinDelay))
}

// Do calls fn until it succeeds, the attempts are exhausted, the error is fatal or ctx is done.
// attempt starts at 1. It returns the error of the last attempt.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts || Fatal(err) || ctx.Err() != nil {
			break
		}
		delay := p.Delay()
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if sleep(ctx, delay) != nil {
			break
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
