package engine

import (
	"fmt"

	"github.com/mmynk/settler/internal/models"
)

// bpScale is the denominator for percentage shares: 100% = 10000 basis
// points, so one-hundredth-of-a-percent splits stay exact integers.
const bpScale = 10000

// ComputeSplits converts an expense into per-participant shares. The
// returned owed amounts sum exactly to the expense amount (for ITEMIZED, to
// the sum of item prices, which must equal the amount). All arithmetic is
// integer minor units.
func ComputeSplits(e *models.Expense) ([]models.ExpenseSplit, error) {
	if e.Amount < 0 {
		return nil, fmt.Errorf("%w: negative amount %d", ErrInvalidSplitSpec, e.Amount)
	}

	switch e.SplitType {
	case models.SplitEqual:
		return splitEqual(e.Amount, e.Participants)
	case models.SplitExact:
		return splitExact(e.Amount, e.Shares, e.Participants)
	case models.SplitPercent:
		return splitPercent(e.Amount, e.Shares, e.Participants)
	case models.SplitShares:
		return splitByShares(e.Amount, e.Shares, e.Participants)
	case models.SplitItemized:
		return splitItemized(e)
	default:
		return nil, fmt.Errorf("%w: unknown split type %q", ErrInvalidSplitSpec, e.SplitType)
	}
}

// splitEqual divides amount evenly; the r leftover cents go one each to the
// first r participants in assignment order.
func splitEqual(amount int64, participants []models.ParticipantID) ([]models.ExpenseSplit, error) {
	n := int64(len(participants))
	if n == 0 {
		if amount == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: no participants for amount %d", ErrInvalidSplitSpec, amount)
	}

	base := amount / n
	r := amount - base*n

	splits := make([]models.ExpenseSplit, n)
	for i, p := range participants {
		owed := base
		if int64(i) < r {
			owed++
		}
		splits[i] = models.ExpenseSplit{Participant: p, OwedAmount: owed}
	}
	return splits, nil
}

// splitExact uses the caller-supplied amounts verbatim. The sum must match
// the expense amount with zero tolerance; a mismatch is an error, never an
// auto-correction.
func splitExact(amount int64, shares []models.SplitShare, participants []models.ParticipantID) ([]models.ExpenseSplit, error) {
	if len(shares) == 0 && amount != 0 {
		return nil, fmt.Errorf("%w: no shares for amount %d", ErrInvalidSplitSpec, amount)
	}
	if err := checkAssigned(shares, participants); err != nil {
		return nil, err
	}

	var sum int64
	splits := make([]models.ExpenseSplit, len(shares))
	for i, s := range shares {
		sum += s.Amount
		splits[i] = models.ExpenseSplit{Participant: s.Participant, OwedAmount: s.Amount}
	}
	if sum != amount {
		return nil, fmt.Errorf("%w: shares sum to %d, expense amount is %d", ErrSplitMismatch, sum, amount)
	}
	return splits, nil
}

// splitPercent divides amount by caller-supplied basis points, which must
// sum to exactly 100%. Flooring leftovers are distributed by the
// largest-remainder rule, ties broken by assignment order.
func splitPercent(amount int64, shares []models.SplitShare, participants []models.ParticipantID) ([]models.ExpenseSplit, error) {
	if len(shares) == 0 {
		if amount != 0 {
			return nil, fmt.Errorf("%w: no shares for amount %d", ErrInvalidSplitSpec, amount)
		}
		return nil, nil
	}
	if err := checkAssigned(shares, participants); err != nil {
		return nil, err
	}

	var total int64
	weights := make([]int64, len(shares))
	for i, s := range shares {
		if s.BasisPoints < 0 {
			return nil, fmt.Errorf("%w: negative percentage for %s", ErrInvalidSplitSpec, s.Participant)
		}
		weights[i] = s.BasisPoints
		total += s.BasisPoints
	}
	if total != bpScale {
		return nil, fmt.Errorf("%w: percentages sum to %d basis points, want %d", ErrInvalidSplitSpec, total, bpScale)
	}

	amounts := allocateProportional(amount, weights, total, false)
	splits := make([]models.ExpenseSplit, len(shares))
	for i, s := range shares {
		splits[i] = models.ExpenseSplit{Participant: s.Participant, OwedAmount: amounts[i]}
	}
	return splits, nil
}

// splitByShares divides amount proportionally to positive integer share
// counts, same largest-remainder rule as percentages.
func splitByShares(amount int64, shares []models.SplitShare, participants []models.ParticipantID) ([]models.ExpenseSplit, error) {
	if len(shares) == 0 {
		if amount != 0 {
			return nil, fmt.Errorf("%w: no shares for amount %d", ErrInvalidSplitSpec, amount)
		}
		return nil, nil
	}
	if err := checkAssigned(shares, participants); err != nil {
		return nil, err
	}

	var total int64
	weights := make([]int64, len(shares))
	for i, s := range shares {
		if s.Shares <= 0 {
			return nil, fmt.Errorf("%w: non-positive share count for %s", ErrInvalidSplitSpec, s.Participant)
		}
		weights[i] = s.Shares
		total += s.Shares
	}

	amounts := allocateProportional(amount, weights, total, false)
	splits := make([]models.ExpenseSplit, len(shares))
	for i, s := range shares {
		splits[i] = models.ExpenseSplit{Participant: s.Participant, OwedAmount: amounts[i]}
	}
	return splits, nil
}

// checkAssigned verifies every share references a participant of the
// expense's participant set.
func checkAssigned(shares []models.SplitShare, participants []models.ParticipantID) error {
	set := make(map[models.ParticipantID]bool, len(participants))
	for _, p := range participants {
		set[p] = true
	}
	for _, s := range shares {
		if !set[s.Participant] {
			return fmt.Errorf("%w: %s", ErrUnassignedParticipant, s.Participant)
		}
	}
	return nil
}

// allocateProportional splits amount by integer weights: each slot gets
// floor(amount*w/total), then the leftover minor units are handed out one by
// one to the slots with the largest fractional remainder. Equal remainders
// go to the earlier slot, or to the later slot when tieLast is set (the
// tax/tip rule). total must be positive.
func allocateProportional(amount int64, weights []int64, total int64, tieLast bool) []int64 {
	amounts := make([]int64, len(weights))
	remainders := make([]int64, len(weights))

	var allocated int64
	for i, w := range weights {
		product := amount * w
		amounts[i] = product / total
		remainders[i] = product % total
		allocated += amounts[i]
	}

	// Hand out leftover cents, one per pass, to the current largest
	// remainder. Leftover is < len(weights) so the scan stays cheap.
	for leftover := amount - allocated; leftover > 0; leftover-- {
		best := -1
		for i, r := range remainders {
			switch {
			case best < 0, r > remainders[best]:
				best = i
			case r == remainders[best] && tieLast:
				best = i
			}
		}
		amounts[best]++
		remainders[best] = -1 // each slot receives at most one leftover cent
	}
	return amounts
}
