package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeClientChainsResponses(t *testing.T) {
	c := newFakeClient()
	first, err := c.CreateResponse(context.Background(), ResponseRequest{Model: "gpt-5", Input: "step one"})
	require.NoError(t, err)

	second, err := c.CreateResponse(context.Background(), ResponseRequest{Model: "gpt-5", Input: "step two", PreviousResponseID: first.ID})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	fetched, err := c.RetrieveResponse(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, first.OutputText, fetched.OutputText)
}

func TestParseResponseExtractsUsageAndText(t *testing.T) {
	raw := map[string]any{
		"id": "resp_1", "model": "gpt-5", "status": "completed",
		"usage": map[string]any{"input_tokens": float64(10), "output_tokens": float64(20)},
		"output": []any{
			map[string]any{"content": []any{map[string]any{"type": "output_text", "text": "hi"}}},
		},
	}
	resp := parseResponse(raw)
	require.Equal(t, "hi", resp.OutputText)
	require.Equal(t, 10, resp.InputTokens)
	require.Equal(t, 20, resp.OutputTokens)
}

func TestParseBatchExtractsCounts(t *testing.T) {
	raw := map[string]any{
		"id": "batch_1", "status": "completed",
		"request_counts": map[string]any{"total": float64(5), "completed": float64(4), "failed": float64(1)},
	}
	b := parseBatch(raw)
	require.Equal(t, 5, b.RequestCounts.Total)
	require.Equal(t, 4, b.RequestCounts.Completed)
	require.Equal(t, 1, b.RequestCounts.Failed)
}

func TestProviderErrorFromStatusClassifiesRateLimit(t *testing.T) {
	err := providerErrorFromStatus(429, "2")
	require.True(t, err.Retryable())
	ra, ok := err.RetryAfter()
	require.True(t, ok)
	require.Equal(t, int64(2), int64(ra.Seconds()))
}

func TestProviderErrorFromStatusClassifiesClientError(t *testing.T) {
	err := providerErrorFromStatus(400, "")
	require.False(t, err.Retryable())
}
