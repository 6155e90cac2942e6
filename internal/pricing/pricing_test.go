package pricing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, asOf time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.json")
	data := `{"as_of":"` + asOf.Format(time.RFC3339) + `","rates":{"gpt-5":{"input_per_million":1.0,"output_per_million":2.0}}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o640))
	return path
}

func TestEstimateUsesKnownRate(t *testing.T) {
	path := writeTable(t, time.Now())
	table, err := Load(path)
	require.NoError(t, err)

	cost, estimated := table.Estimate("gpt-5", 1_000_000, 500_000, 24*time.Hour, Rate{})
	require.False(t, estimated)
	require.InDelta(t, 2.0, cost, 0.0001)
}

func TestEstimateFallsBackWhenModelUnknown(t *testing.T) {
	path := writeTable(t, time.Now())
	table, err := Load(path)
	require.NoError(t, err)

	cost, estimated := table.Estimate("unknown-model", 1_000_000, 0, 24*time.Hour, Rate{InputPerMillion: 5})
	require.True(t, estimated)
	require.InDelta(t, 5.0, cost, 0.0001)
}

func TestEstimateFallsBackWhenStale(t *testing.T) {
	path := writeTable(t, time.Now().Add(-48*time.Hour))
	table, err := Load(path)
	require.NoError(t, err)

	_, estimated := table.Estimate("gpt-5", 1_000_000, 0, 24*time.Hour, Rate{InputPerMillion: 3})
	require.True(t, estimated)
}
