// Package rates supplies current exchange-rate tables to the settlement
// engine. Providers return currency→reference rates; historical (pinned)
// rates live on the expenses themselves and never come from here.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settler/internal/engine"
	"github.com/mmynk/settler/internal/models"
)

// Provider yields the current rate table. Implementations may hit a market
// data service, a cache, or a static file; callers decide what to do when a
// needed rate is absent from the table.
type Provider interface {
	Rates(ctx context.Context) (engine.RateTable, error)
}

// Static is a fixed in-memory rate table, used in tests and as the fallback
// when no live source is configured.
type Static struct {
	table engine.RateTable
}

// NewStatic builds a provider over a fixed table.
func NewStatic(table engine.RateTable) *Static {
	return &Static{table: table}
}

// Rates returns the fixed table.
func (s *Static) Rates(context.Context) (engine.RateTable, error) {
	return s.table, nil
}

// DefaultTable carries only the reference currency at parity. It lets a
// deployment without RATES_PATH serve single-currency groups; any
// conversion involving another currency fails with a missing rate.
func DefaultTable() engine.RateTable {
	return engine.RateTable{models.USD: decimal.NewFromInt(1)}
}

// FromFile loads a JSON rate table, e.g. {"EUR": "1.08", "INR": "0.012"}.
// Rates are decimal strings keyed by currency code; unknown codes and
// non-positive rates are rejected at load time rather than at conversion
// time.
func FromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table: %w", err)
	}

	var raw map[models.Currency]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}

	table := make(engine.RateTable, len(raw))
	for currency, s := range raw {
		if !currency.Supported() {
			return nil, fmt.Errorf("unsupported currency %q in rate table", currency)
		}
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("bad rate for %s: %w", currency, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("non-positive rate for %s: %s", currency, s)
		}
		table[currency] = rate
	}
	return NewStatic(table), nil
}
