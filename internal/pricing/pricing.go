// Package pricing turns raw token counts into an estimated USD cost using a
// per-model rate table loaded from disk. When the table is missing a model
// or has gone stale past its TTL, the cost is still computed from the best
// available rate but flagged cost_estimated so receipts stay honest about
// their own confidence.
//
// Grounded on the original source's core/config.py PricingPolicy (table
// file path + cache_ttl_hours).
package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Rate is the per-million-token price for one model.
type Rate struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// Table is a loaded pricing table with its own freshness timestamp.
type Table struct {
	AsOf  time.Time       `json:"as_of"`
	Rates map[string]Rate `json:"rates"`
}

// Load reads a JSON pricing table from path.
func Load(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("pricing: read %s: %w", path, err)
	}
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return Table{}, fmt.Errorf("pricing: parse %s: %w", path, err)
	}
	return t, nil
}

// Stale reports whether the table is older than ttl.
func (t Table) Stale(ttl time.Duration) bool {
	if t.AsOf.IsZero() {
		return true
	}
	return time.Since(t.AsOf) > ttl
}

// Estimate computes a cost in USD for inputTokens/outputTokens against
// model's rate. When the model is unknown or the table is stale, it falls
// back to fallback (typically the run's default model's rate) and always
// returns estimated=true in that case.
func (t Table) Estimate(model string, inputTokens, outputTokens int64, ttl time.Duration, fallback Rate) (costUSD float64, estimated bool) {
	rate, ok := t.Rates[model]
	if !ok || t.Stale(ttl) {
		rate = fallback
		estimated = true
	}
	cost := float64(inputTokens)/1_000_000*rate.InputPerMillion +
		float64(outputTokens)/1_000_000*rate.OutputPerMillion
	return cost, estimated
}
