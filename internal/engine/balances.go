package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settler/internal/models"
)

// ComputeBalances folds a group's expenses into net per-participant,
// per-currency balances, then folds those through the management graph into
// aggregation roots.
//
// For each expense the payer's display identity is credited the full amount
// and every split participant's display identity is debited their share, in
// the expense's own currency; a payer who is also a split participant nets
// naturally. No cross-currency folding happens here: each root keeps one
// balance per currency, and presentation-time conversion is a separate step.
//
// The computation is a pure function of the snapshot: calling it twice on
// the same input yields identical output.
func ComputeBalances(expenses []models.Expense, rel models.Relationships) (models.BalanceSheet, error) {
	resolver, err := NewResolver(rel)
	if err != nil {
		return nil, err
	}

	// Accumulate by display identity first; the management fold comes after.
	raw := make(models.BalanceSheet)
	for i := range expenses {
		e := &expenses[i]
		splits, err := ComputeSplits(e)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		raw[models.BalanceKey{Root: resolver.DisplayIdentity(e.Payer), Currency: e.Currency}] += e.Amount
		for _, s := range splits {
			raw[models.BalanceKey{Root: resolver.DisplayIdentity(s.Participant), Currency: e.Currency}] -= s.OwedAmount
		}
	}
	if err := checkZeroSum(raw); err != nil {
		return nil, err
	}

	// Fold every non-root display identity into its aggregation root,
	// currency by currency. Folding moves balance between entries, so the
	// zero-sum invariant survives it.
	sheet := make(models.BalanceSheet, len(raw))
	for key, amount := range raw {
		root, err := resolver.AggregationRoot(key.Root)
		if err != nil {
			return nil, err
		}
		sheet[models.BalanceKey{Root: root, Currency: key.Currency}] += amount
	}
	for key, amount := range sheet {
		if amount == 0 {
			delete(sheet, key)
		}
	}
	if err := checkZeroSum(sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

// ApplySettlements folds recorded payments into a computed balance sheet:
// the payer's root is credited, the receiver's root debited, in the
// settlement currency. Returns a new sheet; the input is not mutated.
func ApplySettlements(sheet models.BalanceSheet, settlements []models.Settlement, rel models.Relationships) (models.BalanceSheet, error) {
	resolver, err := NewResolver(rel)
	if err != nil {
		return nil, err
	}

	out := make(models.BalanceSheet, len(sheet))
	for key, amount := range sheet {
		out[key] = amount
	}
	for _, s := range settlements {
		if s.Amount <= 0 {
			return nil, fmt.Errorf("%w: settlement %s has non-positive amount %d", ErrInvalidSplitSpec, s.ID, s.Amount)
		}
		fromRoot, err := resolver.AggregationRoot(s.From)
		if err != nil {
			return nil, err
		}
		toRoot, err := resolver.AggregationRoot(s.To)
		if err != nil {
			return nil, err
		}
		out[models.BalanceKey{Root: fromRoot, Currency: s.Currency}] += s.Amount
		out[models.BalanceKey{Root: toRoot, Currency: s.Currency}] -= s.Amount
	}
	for key, amount := range out {
		if amount == 0 {
			delete(out, key)
		}
	}
	return out, nil
}

// NormalizeBalances converts a multi-currency balance sheet into a single
// target currency at current rates, for display or settlement planning.
// Per-root totals are summed in exact decimal before rounding; the residual
// minor units left by rounding are charged to the largest-magnitude balance
// (ties to the lower participant key) so the output still sums to exactly
// zero.
func NormalizeBalances(sheet models.BalanceSheet, rates RateTable, target models.Currency) (map[models.ParticipantID]int64, error) {
	targetRate, ok := rates[target]
	if !ok || !targetRate.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, target)
	}

	exact := make(map[models.ParticipantID]decimal.Decimal)
	for key, amount := range sheet {
		rate, ok := rates[key.Currency]
		if !ok || !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, key.Currency)
		}
		converted := decimal.NewFromInt(amount).Mul(rate).Div(targetRate)
		exact[key.Root] = exact[key.Root].Add(converted)
	}

	out := make(map[models.ParticipantID]int64, len(exact))
	var residue int64
	for root, d := range exact {
		rounded := roundHalfUp(d)
		out[root] = rounded
		residue += rounded
	}
	if residue != 0 {
		var carrier models.ParticipantID
		found := false
		for root, amount := range out {
			if !found || abs64(amount) > abs64(out[carrier]) ||
				(abs64(amount) == abs64(out[carrier]) && root.Less(carrier)) {
				carrier = root
				found = true
			}
		}
		if found {
			out[carrier] -= residue
		}
	}
	for root, amount := range out {
		if amount == 0 {
			delete(out, root)
		}
	}
	return out, nil
}

// checkZeroSum verifies the closed-group invariant: balances in each
// currency sum to exactly zero.
func checkZeroSum(sheet models.BalanceSheet) error {
	sums := make(map[models.Currency]int64)
	for key, amount := range sheet {
		sums[key.Currency] += amount
	}
	for currency, sum := range sums {
		if sum != 0 {
			return fmt.Errorf("%w: %s off by %d", ErrUnbalancedLedger, currency, sum)
		}
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
