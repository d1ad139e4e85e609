package models

import "time"

// SplitType selects how an expense's amount is divided among participants.
// It is a closed set; the engine dispatches on it with one calculation per
// tag so the rounding policy stays auditable per variant.
type SplitType string

const (
	// SplitEqual divides the amount evenly, leftover cents going one each to
	// the first participants in assignment order.
	SplitEqual SplitType = "EQUAL"

	// SplitExact uses caller-supplied per-participant amounts that must sum
	// to the expense amount exactly.
	SplitExact SplitType = "EXACT"

	// SplitPercent uses caller-supplied percentages, carried as integer basis
	// points (1% = 100 bp), that must sum to exactly 100%.
	SplitPercent SplitType = "PERCENT"

	// SplitShares divides proportionally to positive integer share counts.
	SplitShares SplitType = "SHARES"

	// SplitItemized splits each line item by its own rule, then distributes
	// tax/tip items proportionally to per-participant subtotals.
	SplitItemized SplitType = "ITEMIZED"
)

// SplitShare is the caller-supplied input for one participant of a non-EQUAL
// split. Exactly one of Amount, BasisPoints, or Shares is meaningful,
// depending on the split type; the others are zero.
type SplitShare struct {
	Participant ParticipantID

	// Amount is this participant's exact share in minor units (EXACT).
	Amount int64

	// BasisPoints is this participant's percentage in hundredths of a
	// percent (PERCENT). 2550 means 25.50%.
	BasisPoints int64

	// Shares is this participant's positive share count (SHARES).
	Shares int64
}

// Expense is a paid amount to be split among a group's participants.
//
// The record is replaced whole whenever its split data changes; derived
// splits are regenerated on every replace, never edited field by field.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Description is the human-readable label ("Dinner", "Taxi").
	Description string

	// Amount is the total paid, in minor units of Currency. For ITEMIZED
	// expenses it equals the sum of item prices.
	Amount int64

	// Currency is the currency the expense was paid in.
	Currency Currency

	// Date is the calendar date of the expense. Time-of-day is not
	// meaningful and is normalized to midnight UTC.
	Date time.Time

	// Payer is the participant who paid the full amount.
	Payer ParticipantID

	// SplitType selects the division rule.
	SplitType SplitType

	// PinnedRate is the Currency→reference-currency exchange rate on Date,
	// as a decimal string, fixed at creation. Empty when never pinned.
	// Re-pinned only when Date or Currency change.
	PinnedRate string

	// Participants is the expense's participant set in assignment order.
	// The order is the deterministic tie-break for remainder allocation.
	Participants []ParticipantID

	// Shares carries the per-participant inputs for EXACT, PERCENT and
	// SHARES splits, in assignment order. Empty for EQUAL and ITEMIZED.
	Shares []SplitShare

	// Items are the line items of an ITEMIZED expense. Empty otherwise.
	Items []ExpenseItem

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// ExpenseItem is one line of an ITEMIZED expense.
type ExpenseItem struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// Description is the item label ("Burger", "Service charge").
	Description string

	// Price is the item price in minor units of the expense currency.
	Price int64

	// IsTaxTip marks the item as a tax/tip/fee line. Tax/tip items are not
	// assigned directly; their price is distributed across participants in
	// proportion to their non-tax/tip subtotals.
	IsTaxTip bool

	// SplitType is the item's own division rule: EQUAL, EXACT, PERCENT or
	// SHARES. ITEMIZED does not nest.
	SplitType SplitType

	// Assignments lists who shares this item, in assignment order, with the
	// per-assignment detail required by SplitType. For EQUAL assignments
	// only the Participant field is set.
	Assignments []SplitShare
}

// ExpenseSplit is the derived output of the split calculator for one
// participant: what they owe toward the expense, in minor units of the
// expense currency. Splits always sum exactly to the expense amount.
type ExpenseSplit struct {
	Participant ParticipantID
	OwedAmount  int64
}
