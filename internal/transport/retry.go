package transport

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig tunes Do's exponential backoff with jitter.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// DefaultRetryConfig mirrors services/trace/context/retry.go's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      time.Second,
	}
}

// Retryable is implemented by errors that know whether a retry is worthwhile
// and, optionally, how long the server asked the caller to wait.
type Retryable interface {
	error
	Retryable() bool
	RetryAfter() (time.Duration, bool)
}

// ErrMaxAttemptsExceeded wraps the last error once attempts are exhausted.
type ErrMaxAttemptsExceeded struct {
	Attempts int
	Last     error
}

func (e *ErrMaxAttemptsExceeded) Error() string {
	return "transport: max attempts exceeded: " + e.Last.Error()
}

func (e *ErrMaxAttemptsExceeded) Unwrap() error { return e.Last }

// Do runs fn up to cfg.MaxAttempts times, sleeping between attempts with
// exponential backoff plus jitter. It stops early if ctx is cancelled, if fn
// returns a non-Retryable error, or if a Retryable error reports
// Retryable()==false. The first Retryable error carrying a RetryAfter
// overrides the computed backoff for that attempt (honoring the server's
// Retry-After once per call); later attempts use the computed backoff.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	retryAfterUsed := false
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		var rt Retryable
		if !errors.As(lastErr, &rt) || !rt.Retryable() {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		if ra, ok := rt.RetryAfter(); ok && ra > 0 && !retryAfterUsed {
			delay = ra
			retryAfterUsed = true
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return &ErrMaxAttemptsExceeded{Attempts: cfg.MaxAttempts, Last: lastErr}
}

// backoffDelay computes base * 2^(attempt-1), capped at MaxDelay, plus a
// uniform random jitter in [0, Jitter).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	mult := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(cfg.BaseDelay) * mult)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(cfg.Jitter)))
	}
	return delay
}
