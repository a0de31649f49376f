// Package retry wraps github.com/cenkalti/backoff/v4 behind the same
// Policy interface the teacher's hand-rolled pkg/retry exposed. The
// teacher's ExponentialBackoff reimplemented jittered exponential
// backoff from scratch even though backoff/v4 was already a root
// dependency; this version finishes that wiring instead of keeping a
// second, parallel implementation of the same algorithm.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy defines the retry policy interface used by remote-tier calls.
type Policy interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config contains retry configuration, named to match the teacher's
// pkg/retry.Config field-for-field.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	Multiplier      float64
	MaxRetries      int
}

// ExponentialBackoff implements Policy atop backoff.ExponentialBackOff.
type ExponentialBackoff struct {
	config Config
}

// NewExponentialBackoff fills unset fields with defaults (100ms
// initial, 30s max interval, 5m max elapsed time, multiplier 2,
// 10 retries) and returns a ready Policy.
func NewExponentialBackoff(config Config) Policy {
	if config.InitialInterval <= 0 {
		config.InitialInterval = 100 * time.Millisecond
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 30 * time.Second
	}
	if config.MaxElapsedTime <= 0 {
		config.MaxElapsedTime = 5 * time.Minute
	}
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 10
	}
	return &ExponentialBackoff{config: config}
}

// Execute runs fn, retrying with jittered exponential backoff on
// error, until MaxRetries is reached, MaxElapsedTime has elapsed, or
// ctx is canceled.
func (e *ExponentialBackoff) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.InitialInterval
	bo.MaxInterval = e.config.MaxInterval
	bo.MaxElapsedTime = e.config.MaxElapsedTime
	bo.Multiplier = e.config.Multiplier

	withCtx := backoff.WithContext(bo, ctx)
	limited := backoff.WithMaxRetries(withCtx, uint64(e.config.MaxRetries))

	var lastErr error
	op := func() error {
		lastErr = fn(ctx)
		return lastErr
	}

	if err := backoff.Retry(op, limited); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

// NoRetry never retries; it runs fn exactly once. Useful when the
// caller's own performance profile disables retries outright.
type NoRetry struct{}

func (NoRetry) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
