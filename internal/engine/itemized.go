package engine

import (
	"fmt"

	"github.com/mmynk/settler/internal/models"
)

// splitItemized splits each non-tax/tip item by the item's own rule, sums
// the results into per-participant subtotals, then distributes every
// tax/tip item proportionally to those subtotals. Output is one split per
// expense participant in assignment order.
func splitItemized(e *models.Expense) ([]models.ExpenseSplit, error) {
	var priceSum int64
	for _, item := range e.Items {
		if item.Price < 0 {
			return nil, fmt.Errorf("%w: negative price for item %q", ErrInvalidSplitSpec, item.Description)
		}
		priceSum += item.Price
	}
	if priceSum != e.Amount {
		return nil, fmt.Errorf("%w: item prices sum to %d, expense amount is %d", ErrSplitMismatch, priceSum, e.Amount)
	}

	subtotals := make(map[models.ParticipantID]int64, len(e.Participants))
	for _, item := range e.Items {
		if item.IsTaxTip {
			continue
		}
		itemSplits, err := splitItem(&item, e.Participants)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", item.Description, err)
		}
		for _, s := range itemSplits {
			subtotals[s.Participant] += s.OwedAmount
		}
	}

	// Tax/tip weights: every participant with a non-zero subtotal, in the
	// expense's canonical participant order. Direct assignments on tax/tip
	// items are ignored; a zero-subtotal participant never pays tax.
	var eligible []models.ParticipantID
	var weights []int64
	var totalSubtotal int64
	for _, p := range e.Participants {
		if sub := subtotals[p]; sub > 0 {
			eligible = append(eligible, p)
			weights = append(weights, sub)
			totalSubtotal += sub
		}
	}

	taxShares := make(map[models.ParticipantID]int64, len(eligible))
	for _, item := range e.Items {
		if !item.IsTaxTip || item.Price == 0 {
			continue
		}
		if totalSubtotal == 0 {
			return nil, fmt.Errorf("%w: tax/tip item %q with no item subtotals to distribute over", ErrInvalidSplitSpec, item.Description)
		}
		amounts := allocateProportional(item.Price, weights, totalSubtotal, true)
		for i, p := range eligible {
			taxShares[p] += amounts[i]
		}
	}

	splits := make([]models.ExpenseSplit, len(e.Participants))
	for i, p := range e.Participants {
		splits[i] = models.ExpenseSplit{
			Participant: p,
			OwedAmount:  subtotals[p] + taxShares[p],
		}
	}
	return splits, nil
}

// splitItem applies the EQUAL/EXACT/PERCENT/SHARES rules at item
// granularity. Items do not nest: ITEMIZED is not a valid item split type.
func splitItem(item *models.ExpenseItem, participants []models.ParticipantID) ([]models.ExpenseSplit, error) {
	switch item.SplitType {
	case models.SplitEqual:
		assignees := make([]models.ParticipantID, len(item.Assignments))
		for i, a := range item.Assignments {
			assignees[i] = a.Participant
		}
		if err := checkAssigned(item.Assignments, participants); err != nil {
			return nil, err
		}
		return splitEqual(item.Price, assignees)
	case models.SplitExact:
		return splitExact(item.Price, item.Assignments, participants)
	case models.SplitPercent:
		return splitPercent(item.Price, item.Assignments, participants)
	case models.SplitShares:
		return splitByShares(item.Price, item.Assignments, participants)
	default:
		return nil, fmt.Errorf("%w: unknown item split type %q", ErrInvalidSplitSpec, item.SplitType)
	}
}
