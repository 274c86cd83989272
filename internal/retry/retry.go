// Package retry implements the bounded exponential-backoff policy the LLM
// clients apply around router and finalizer calls. The taxonomy is fixed
// for this runtime: transport-level failures (a dropped connection, a 5xx
// from the local vLLM endpoint) are transient and retried; a wall-clock
// deadline or cancellation is permanent, since each LLM call already runs
// under the turn's own deadline and retrying a timed-out attempt only
// burns what remains of the turn budget.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config tunes the backoff between attempts.
type Config struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // delay after the first failure
	MaxDelay     time.Duration // cap on the delay between attempts
	Factor       float64       // exponential multiplier
	Jitter       bool          // randomize each delay into [0.5, 1.5]x
}

// DefaultConfig is the stock policy for LLM calls: three attempts,
// 100ms initial delay doubling up to 10s, with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2.0,
		Jitter:       true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Factor <= 0 {
		c.Factor = 2.0
	}
	return c
}

// Result reports how a Do call ended.
type Result struct {
	Attempts int           // attempts actually made
	Err      error         // last error, nil on success
	Duration time.Duration // total time spent, sleeps included
}

// Do runs op until it succeeds, returns a permanent error, or cfg's
// attempt budget is exhausted. ctx cancellation ends the loop between
// attempts and during backoff sleeps.
func Do(ctx context.Context, cfg Config, op func() error) Result {
	cfg = cfg.withDefaults()
	start := time.Now()
	result := Result{}
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}

		err := op()
		result.Err = err
		if err == nil || IsPermanent(err) || attempt >= cfg.MaxAttempts {
			break
		}

		sleep := delay
		if cfg.Jitter {
			sleep = time.Duration(float64(delay) * (0.5 + rand.Float64())) // #nosec G404 -- jitter does not require cryptographic randomness
		}
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.Duration = time.Since(start)
			return result
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	result.Duration = time.Since(start)
	return result
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err must not be retried: an explicit
// Permanent wrap, or a deadline/cancellation — the turn's clock has run
// out either way, so another attempt cannot help.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
