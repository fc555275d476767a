// Package retry runs a remote call with bounded exponential backoff.
//
// The schedule is deterministic: with the defaults a failing call is retried
// after 2s, 4s, 8s, 16s and 32s. When the retries are exhausted the last error
// is returned exactly as the call produced it, so callers can inspect it with
// errors.Is / errors.As or compare it directly.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 5
	// DefaultInitialDelay is the wait before the first retry.
	DefaultInitialDelay = 2 * time.Second
	// Multiplier grows the delay between consecutive retries.
	Multiplier = 2
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// NotifyFunc observes every scheduled retry.
type NotifyFunc func(attempt int, delay time.Duration, err error)

type options struct {
	maxRetries   int
	initialDelay time.Duration
	logger       *slog.Logger
	sleep        SleepFunc
	notify       NotifyFunc
}

// Option customises Do.
type Option func(*options)

// WithMaxRetries sets how many times a failed call is retried. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.initialDelay = d
		}
	}
}

// WithLogger sets the logger used for retry and exhaustion notices.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSleep replaces the wait between attempts. Tests use it to observe the schedule.
func WithSleep(sleep SleepFunc) Option {
	return func(o *options) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithNotify registers a callback invoked before each retry.
func WithNotify(fn NotifyFunc) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// Do invokes call until it succeeds or the retries are exhausted.
//
// If the wait between attempts is interrupted by ctx, the context error is
// returned instead of the call's error.
func Do[T any](ctx context.Context, call func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		maxRetries:   DefaultMaxRetries,
		initialDelay: DefaultInitialDelay,
		sleep:        Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	schedule := &backoff.ExponentialBackOff{
		InitialInterval:     o.initialDelay,
		RandomizationFactor: 0,
		Multiplier:          Multiplier,
		MaxInterval:         time.Duration(math.MaxInt64),
	}
	schedule.Reset()

	remaining := o.maxRetries
	for attempt := 1; ; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}

		delay := schedule.NextBackOff()
		if remaining <= 0 || delay == backoff.Stop {
			o.logger.Error("call failed after retries",
				"attempts", attempt,
				"error", err,
			)
			var zero T
			return zero, err
		}

		o.logger.Warn("call failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"retries_left", remaining,
			"error", err,
		)
		if o.notify != nil {
			o.notify(attempt, delay, err)
		}

		if serr := o.sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
		remaining--
	}
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
