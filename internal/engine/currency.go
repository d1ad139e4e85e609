package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settler/internal/models"
)

// RateTable maps a currency to its current rate against the single reference
// currency. Every conversion routes through the reference: one multiply into
// it, one divide out of it. Rates are decimals, never floats, and results
// round half-up to the nearest minor unit.
//
// A RateTable is the *current* view of the market and is only valid for
// display and settlement planning. Expense-time values use the pinned rate
// stored on the expense via PinnedToReference; the two paths are deliberately
// separate functions so a stale table can never leak into historical sums.
type RateTable map[models.Currency]decimal.Decimal

// ToReference converts an amount in minor units of c into the reference
// currency at current rates.
func (t RateTable) ToReference(amount int64, c models.Currency) (int64, error) {
	rate, ok := t[c]
	if !ok || !rate.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, c)
	}
	return roundHalfUp(decimal.NewFromInt(amount).Mul(rate)), nil
}

// Convert converts an amount between two currencies via the reference
// currency: amount * rate[from] / rate[to].
func (t RateTable) Convert(amount int64, from, to models.Currency) (int64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := t[from]
	if !ok || !fromRate.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := t[to]
	if !ok || !toRate.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}
	return roundHalfUp(decimal.NewFromInt(amount).Mul(fromRate).Div(toRate)), nil
}

// PinnedToReference converts an amount into the reference currency using the
// historical rate pinned on its expense at creation time. This is the only
// correct conversion for expense-time aggregation; current-rate tables must
// not be substituted here.
func PinnedToReference(amount int64, pinnedRate string) (int64, error) {
	rate, err := decimal.NewFromString(pinnedRate)
	if err != nil {
		return 0, fmt.Errorf("%w: bad pinned rate %q: %v", ErrRateUnavailable, pinnedRate, err)
	}
	if !rate.IsPositive() {
		return 0, fmt.Errorf("%w: non-positive pinned rate %q", ErrRateUnavailable, pinnedRate)
	}
	return roundHalfUp(decimal.NewFromInt(amount).Mul(rate)), nil
}

// roundHalfUp rounds to the nearest minor unit, halves away from zero.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
