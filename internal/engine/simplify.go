package engine

import (
	"container/heap"
	"fmt"

	"github.com/mmynk/settler/internal/models"
)

// SimplifyDebts reduces a single-currency map of net balances to an ordered
// list of settling transactions. Greedy matching of the largest creditor
// against the largest debtor yields at most n-1 transactions for n non-zero
// participants; when magnitudes tie, the lower participant key is matched
// first so the output is fully deterministic.
//
// The input must sum to exactly zero; anything else indicates an upstream
// aggregation bug and fails with ErrUnbalancedLedger.
func SimplifyDebts(balances map[models.ParticipantID]int64) ([]models.Transaction, error) {
	var sum int64
	creditors := &partyHeap{}
	debtors := &partyHeap{}
	for id, balance := range balances {
		sum += balance
		switch {
		case balance > 0:
			creditors.parties = append(creditors.parties, party{id: id, amount: balance})
		case balance < 0:
			debtors.parties = append(debtors.parties, party{id: id, amount: -balance})
		}
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: off by %d", ErrUnbalancedLedger, sum)
	}

	heap.Init(creditors)
	heap.Init(debtors)

	var plan []models.Transaction
	for creditors.Len() > 0 && debtors.Len() > 0 {
		creditor := heap.Pop(creditors).(party)
		debtor := heap.Pop(debtors).(party)

		amount := creditor.amount
		if debtor.amount < amount {
			amount = debtor.amount
		}
		plan = append(plan, models.Transaction{From: debtor.id, To: creditor.id, Amount: amount})

		if creditor.amount -= amount; creditor.amount > 0 {
			heap.Push(creditors, creditor)
		}
		if debtor.amount -= amount; debtor.amount > 0 {
			heap.Push(debtors, debtor)
		}
	}
	return plan, nil
}

// party is one side of an outstanding balance; amount is always the positive
// magnitude regardless of side.
type party struct {
	id     models.ParticipantID
	amount int64
}

// partyHeap is a max-heap by magnitude with a fixed tie-break on the
// participant key, so equal balances always pop in the same order.
type partyHeap struct {
	parties []party
}

func (h *partyHeap) Len() int { return len(h.parties) }

func (h *partyHeap) Less(i, j int) bool {
	a, b := h.parties[i], h.parties[j]
	if a.amount != b.amount {
		return a.amount > b.amount
	}
	return a.id.Less(b.id)
}

func (h *partyHeap) Swap(i, j int) {
	h.parties[i], h.parties[j] = h.parties[j], h.parties[i]
}

func (h *partyHeap) Push(x any) {
	h.parties = append(h.parties, x.(party))
}

func (h *partyHeap) Pop() any {
	old := h.parties
	n := len(old)
	p := old[n-1]
	h.parties = old[:n-1]
	return p
}
