package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, ResetTimeout: time.Hour})
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
		require.Equal(t, StateClosed, b.State())
	}
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, ResetTimeout: 10 * time.Millisecond})
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Allow())
	b.RecordSuccess()
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Allow())
	b.RecordSuccess()
	require.Equal(t, StateClosed, b.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, ResetTimeout: 10 * time.Millisecond})
	require.NoError(t, b.Allow())
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	b := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	b.Reset()
	require.Equal(t, StateClosed, b.State())
}
