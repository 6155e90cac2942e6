package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Client composes rate limiting, a circuit breaker, and retry/backoff around
// any Provider call. One Client is shared across a run's Provider calls so
// the breaker and limiter see the run's real concurrency.
type Client struct {
	breaker *CircuitBreaker
	limiter *rate.Limiter
	retry   RetryConfig
}

// NewClient builds a Client. ratePerSecond<=0 disables rate limiting.
func NewClient(breakerCfg BreakerConfig, retryCfg RetryConfig, ratePerSecond float64, burst int) *Client {
	var lim *rate.Limiter
	if ratePerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Client{
		breaker: NewCircuitBreaker(breakerCfg),
		limiter: lim,
		retry:   retryCfg,
	}
}

// Do executes fn under rate limiting, the circuit breaker, and retry with
// backoff. fn should return a *ProviderError (or any Retryable) on failure so
// Do can decide whether to retry.
func (c *Client) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Do(ctx, c.retry, func(ctx context.Context, attempt int) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := c.breaker.Allow(); err != nil {
			return NewProviderError(KindServer, 0, "circuit breaker open", 2*time.Second)
		}

		err := fn(ctx)
		if err != nil {
			c.breaker.RecordFailure()
			return err
		}
		c.breaker.RecordSuccess()
		return nil
	})
}

// BreakerState exposes the breaker's current state for observability/health
// endpoints.
func (c *Client) BreakerState() BreakerState { return c.breaker.State() }
