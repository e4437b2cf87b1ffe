// Package retry runs an operation until a classifier accepts its outcome or
// the attempts run out, sleeping between attempts on an exponential schedule.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Verdict is the classification of a single attempt
type Verdict int

const (
	// Success stops retrying and returns the attempt's result
	Success Verdict = iota
	// Retryable schedules another attempt unless this one was the last
	Retryable
	// Fatal stops retrying and returns the attempt's result
	Fatal
)

func (v Verdict) String() string {
	switch v {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

const DefaultMaxAttempts = 3

// NoHint is the wait a Classifier returns to keep the backoff schedule
const NoHint time.Duration = -1

// Classifier inspects an attempt's outcome. Any wait other than NoHint, zero included,
// overrides the backoff schedule.
type Classifier[T any] func(v T, err error) (verdict Verdict, wait time.Duration)

// Policy configures Do. The zero value makes DefaultMaxAttempts attempts waiting 1s, 2s, 4s...
type Policy struct {
	MaxAttempts int
	// NewBackOff builds the wait schedule of one Do call
	NewBackOff func() backoff.BackOff
	// Sleep waits for d or until ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before sleeping with the attempt number (from 0) that is being retried
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Exponential returns the wait schedule 2^attempt seconds without jitter
func Exponential() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// SleepContext waits for d unless ctx is done first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls op until classify reports Success or Fatal, or MaxAttempts is reached.
// When the last attempt is still Retryable its result is returned unchanged so the
// caller can classify it further. Context cancellation while sleeping returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), classify Classifier[T]) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	newBackOff := p.NewBackOff
	if newBackOff == nil {
		newBackOff = Exponential
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	schedule := newBackOff()

	var (
		v   T
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		v, err = op(ctx, attempt)
		verdict, hint := classify(v, err)
		if verdict != Retryable || attempt == attempts-1 {
			return v, err
		}

		wait := schedule.NextBackOff()
		if hint >= 0 {
			wait = hint
		}
		if wait == backoff.Stop {
			return v, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			var zero T
			return zero, serr
		}
	}
	return v, err
}
