package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settler/internal/engine"
	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/rates"
	"github.com/mmynk/settler/internal/storage/memory"
)

// capturePublisher records published events so tests can assert on them.
type capturePublisher struct {
	topics []string
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, event any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func setupService(t *testing.T) (*LedgerService, *capturePublisher) {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Close() })

	provider := rates.NewStatic(engine.RateTable{
		models.USD: decimal.NewFromInt(1),
		models.EUR: decimal.RequireFromString("1.10"),
	})
	pub := &capturePublisher{}
	return NewLedgerService(store, provider, pub), pub
}

var (
	alice = models.User("alice")
	bob   = models.User("bob")
	carol = models.User("carol")
	gig   = models.Guest("gig")
)

func TestRecordExpenseAndBalances(t *testing.T) {
	svc, pub := setupService(t)
	ctx := context.Background()

	splits, err := svc.RecordExpense(ctx, &models.Expense{
		GroupID:      "trip",
		Description:  "Dinner",
		Amount:       3000,
		Currency:     models.USD,
		Payer:        alice,
		SplitType:    models.SplitEqual,
		Participants: []models.ParticipantID{alice, bob, carol},
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	if len(splits) != 3 {
		t.Fatalf("expected 3 splits, got %d", len(splits))
	}

	sheet, err := svc.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if got := sheet[models.BalanceKey{Root: alice, Currency: models.USD}]; got != 2000 {
		t.Errorf("alice balance = %d, want 2000", got)
	}
	if got := sheet[models.BalanceKey{Root: bob, Currency: models.USD}]; got != -1000 {
		t.Errorf("bob balance = %d, want -1000", got)
	}

	if len(pub.topics) != 1 || pub.topics[0] != "expense_recorded" {
		t.Errorf("published topics = %v, want [expense_recorded]", pub.topics)
	}
}

func TestRecordExpenseRejectsBadSplit(t *testing.T) {
	svc, pub := setupService(t)

	_, err := svc.RecordExpense(context.Background(), &models.Expense{
		GroupID:      "trip",
		Amount:       1000,
		Currency:     models.USD,
		Payer:        alice,
		SplitType:    models.SplitExact,
		Participants: []models.ParticipantID{alice, bob},
		Shares: []models.SplitShare{
			{Participant: alice, Amount: 400},
			{Participant: bob, Amount: 400},
		},
	})
	if !errors.Is(err, engine.ErrSplitMismatch) {
		t.Fatalf("expected ErrSplitMismatch, got %v", err)
	}
	if len(pub.topics) != 0 {
		t.Errorf("no event should be published for a rejected expense, got %v", pub.topics)
	}

	// Nothing persisted either.
	expenses, err := svc.store.ListExpenses(context.Background(), "trip")
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(expenses) != 0 {
		t.Errorf("expected empty ledger, got %d expenses", len(expenses))
	}
}

func TestSettlementReducesBalance(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordExpense(ctx, &models.Expense{
		GroupID:      "trip",
		Amount:       2000,
		Currency:     models.USD,
		Payer:        alice,
		SplitType:    models.SplitEqual,
		Participants: []models.ParticipantID{alice, bob},
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	err = svc.CreateSettlement(ctx, &models.Settlement{
		GroupID:  "trip",
		From:     bob,
		To:       alice,
		Amount:   1000,
		Currency: models.USD,
	})
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	sheet, err := svc.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if len(sheet) != 0 {
		t.Errorf("expected settled group to have no balances, got %v", sheet)
	}
}

func TestCreateSettlementRejectsNonPositive(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.CreateSettlement(context.Background(), &models.Settlement{
		GroupID:  "trip",
		From:     bob,
		To:       alice,
		Amount:   0,
		Currency: models.USD,
	})
	if !errors.Is(err, engine.ErrInvalidSplitSpec) {
		t.Fatalf("expected ErrInvalidSplitSpec, got %v", err)
	}
}

func TestGuestClaimFoldsHistory(t *testing.T) {
	svc, pub := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordExpense(ctx, &models.Expense{
		GroupID:      "trip",
		Amount:       2000,
		Currency:     models.USD,
		Payer:        alice,
		SplitType:    models.SplitEqual,
		Participants: []models.ParticipantID{alice, gig},
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	if err := svc.ClaimGuest(ctx, "trip", gig, bob); err != nil {
		t.Fatalf("ClaimGuest failed: %v", err)
	}

	sheet, err := svc.GroupBalances(ctx, "trip")
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if got := sheet[models.BalanceKey{Root: bob, Currency: models.USD}]; got != -1000 {
		t.Errorf("bob balance = %d, want -1000 (claimed guest debt)", got)
	}
	if _, ok := sheet[models.BalanceKey{Root: gig, Currency: models.USD}]; ok {
		t.Error("claimed guest should no longer appear in the sheet")
	}

	if pub.topics[len(pub.topics)-1] != "guest_claimed" {
		t.Errorf("last published topic = %q, want guest_claimed", pub.topics[len(pub.topics)-1])
	}
}

func TestSettlementPlanCrossCurrency(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	// Alice fronts 20.00 USD split with Bob, Bob fronts 11.00 EUR split
	// with Alice. In USD terms Bob owes 10.00 and is owed 6.05.
	_, err := svc.RecordExpense(ctx, &models.Expense{
		GroupID:      "trip",
		Amount:       2000,
		Currency:     models.USD,
		Payer:        alice,
		SplitType:    models.SplitEqual,
		Participants: []models.ParticipantID{alice, bob},
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	_, err = svc.RecordExpense(ctx, &models.Expense{
		GroupID:      "trip",
		Amount:       1100,
		Currency:     models.EUR,
		Payer:        bob,
		SplitType:    models.SplitEqual,
		Participants: []models.ParticipantID{alice, bob},
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	plan, err := svc.SettlementPlan(ctx, "trip", models.USD)
	if err != nil {
		t.Fatalf("SettlementPlan failed: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("expected a single transfer, got %v", plan)
	}
	tx := plan[0]
	if tx.From != bob || tx.To != alice || tx.Amount != 395 {
		t.Errorf("plan = %+v, want bob -> alice 395", tx)
	}
}

func TestGroupBalancesInRateFailure(t *testing.T) {
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	provider := failingProvider{}
	svc := NewLedgerService(store, provider, nil)

	_, err := svc.GroupBalancesIn(context.Background(), "trip", models.USD)
	if !errors.Is(err, engine.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

type failingProvider struct{}

func (failingProvider) Rates(ctx context.Context) (engine.RateTable, error) {
	return nil, errors.New("rates feed down")
}

func TestManagementCycleRejected(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if err := svc.SetManager(ctx, "trip", gig, alice); err != nil {
		t.Fatalf("SetManager failed: %v", err)
	}
	err := svc.SetManager(ctx, "trip", alice, gig)
	if !errors.Is(err, engine.ErrManagementCycle) {
		t.Fatalf("expected ErrManagementCycle, got %v", err)
	}
}
