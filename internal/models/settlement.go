package models

// Settlement records a payment between two group members made to clear debt.
// Folding a settlement into a balance sheet credits the payer and debits the
// receiver, exactly like an expense leg.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// From is the participant who paid (debtor settling up).
	From ParticipantID

	// To is the participant who received the payment (creditor being paid).
	To ParticipantID

	// Amount is the payment amount in minor units of Currency.
	Amount int64

	// Currency is the currency the payment was made in.
	Currency Currency

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64

	// Note is an optional description for the settlement.
	Note string
}
