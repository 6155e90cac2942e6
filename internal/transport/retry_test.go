package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesRetryableThenSucceeds(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, func(ctx context.Context, attempt int) error {
		attempts++
		if attempt < 3 {
			return NewProviderError(KindServer, 500, "boom", 0)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		attempts++
		return NewProviderError(KindClient, 400, "bad request", 0)
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	err := Do(context.Background(), RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, func(ctx context.Context, attempt int) error {
		return NewProviderError(KindNetwork, 0, "timeout", 0)
	})
	var maxErr *ErrMaxAttemptsExceeded
	require.True(t, errors.As(err, &maxErr))
	require.Equal(t, 2, maxErr.Attempts)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context, attempt int) error {
		return NewProviderError(KindNetwork, 0, "boom", 0)
	})
	require.ErrorIs(t, err, context.Canceled)
}
