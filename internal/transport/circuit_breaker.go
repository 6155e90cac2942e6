// Package transport provides the resilience layer every Provider call goes
// through: a circuit breaker guarding against hammering a failing endpoint,
// and exponential backoff with jitter for the retries the breaker allows.
//
// Grounded on services/trace/context/circuit_breaker.go and retry.go — same
// three-state model and jittered-backoff shape, generalized from
// tracing-span protection to Provider HTTP calls.
package transport

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow when the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("transport: circuit breaker open")

// BreakerConfig tunes a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before tripping
	SuccessThreshold int           // consecutive half-open successes before closing
	ResetTimeout     time.Duration // how long the breaker stays open before probing
	HalfOpenMaxCalls int           // concurrent probe calls allowed while half-open
}

// DefaultBreakerConfig mirrors circuit_breaker.go's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxCalls:  1,
	}
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu               sync.Mutex
	state            BreakerState
	consecFailures   int
	consecSuccesses  int
	openedAt         time.Time
	halfOpenInFlight int
}

// NewCircuitBreaker constructs a breaker starting in the closed state.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultBreakerConfig().HalfOpenMaxCalls
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// State reports the current state, transitioning Open->HalfOpen first if the
// reset timeout has elapsed.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

func (b *CircuitBreaker) maybeTransitionToHalfOpenLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.consecSuccesses = 0
		b.halfOpenInFlight = 0
	}
}

// Allow reports whether a call may proceed. Callers must invoke exactly one
// of RecordSuccess or RecordFailure for every call Allow approved.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		b.halfOpenInFlight++
		return nil
	default: // StateOpen
		return ErrCircuitOpen
	}
}

// RecordSuccess registers a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecFailures = 0

	switch b.state {
	case StateHalfOpen:
		b.halfOpenInFlight--
		b.consecSuccesses++
		if b.consecSuccesses >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.consecSuccesses = 0
		}
	case StateClosed:
	case StateOpen:
	}
}

// RecordFailure registers a failed call. Any failure while half-open reopens
// the breaker immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenInFlight--
		b.trip()
	case StateClosed:
		b.consecFailures++
		if b.consecFailures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case StateOpen:
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.consecFailures = 0
	b.consecSuccesses = 0
	b.halfOpenInFlight = 0
}

// Reset forces the breaker back to closed, used by capability force-refresh
// flows that want to retest a previously broken endpoint immediately.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecFailures = 0
	b.consecSuccesses = 0
	b.halfOpenInFlight = 0
}
