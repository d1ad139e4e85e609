package models

// BalanceKey addresses one entry of an aggregated balance sheet: the
// aggregation-root participant and the currency the balance is held in.
type BalanceKey struct {
	Root     ParticipantID
	Currency Currency
}

// BalanceSheet maps (root, currency) to a net signed balance in minor units.
// Positive means the root is owed money, negative means the root owes.
// It is always derived from the expense and settlement sets, never stored.
type BalanceSheet map[BalanceKey]int64

// Transaction is one leg of a computed settlement plan: From pays To the
// given positive amount. All amounts in a plan share a single currency,
// chosen by the caller before simplification.
type Transaction struct {
	From   ParticipantID
	To     ParticipantID
	Amount int64
}
