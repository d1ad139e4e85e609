package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	alice := models.User("alice")
	bob := models.User("bob")
	kid := models.Guest("kid")

	t.Run("ReplaceExpense generates ID and round-trips", func(t *testing.T) {
		expense := &models.Expense{
			GroupID:     "trip",
			Description: "Dinner",
			Amount:      4547,
			Currency:    models.USD,
			Date:        time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
			Payer:       alice,
			SplitType:   models.SplitItemized,
			PinnedRate:  "1.0865",
			Participants: []models.ParticipantID{
				alice, bob, kid,
			},
			Items: []models.ExpenseItem{
				{
					Description: "Burger",
					Price:       1299,
					SplitType:   models.SplitEqual,
					Assignments: []models.SplitShare{{Participant: alice}, {Participant: bob}},
				},
				{
					Description: "Pitcher",
					Price:       2498,
					SplitType:   models.SplitShares,
					Assignments: []models.SplitShare{
						{Participant: bob, Shares: 2},
						{Participant: kid, Shares: 1},
					},
				},
				{Description: "Tax & tip", Price: 750, IsTaxTip: true, SplitType: models.SplitEqual},
			},
		}

		if err := store.ReplaceExpense(ctx, expense); err != nil {
			t.Fatalf("ReplaceExpense failed: %v", err)
		}
		if expense.ID == "" {
			t.Error("Expected expense ID to be generated")
		}
		if expense.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if retrieved.Amount != 4547 || retrieved.Currency != models.USD {
			t.Errorf("amount/currency = %d/%s, want 4547/USD", retrieved.Amount, retrieved.Currency)
		}
		if retrieved.PinnedRate != "1.0865" {
			t.Errorf("pinned rate = %q, want 1.0865", retrieved.PinnedRate)
		}
		if !retrieved.Date.Equal(expense.Date) {
			t.Errorf("date = %v, want %v", retrieved.Date, expense.Date)
		}
		if len(retrieved.Participants) != 3 || retrieved.Participants[2] != kid {
			t.Errorf("participants = %v, want ordered [alice bob kid]", retrieved.Participants)
		}
		if len(retrieved.Items) != 3 {
			t.Fatalf("items = %d, want 3", len(retrieved.Items))
		}
		pitcher := retrieved.Items[1]
		if pitcher.SplitType != models.SplitShares || len(pitcher.Assignments) != 2 {
			t.Fatalf("pitcher = %+v, want SHARES with 2 assignments", pitcher)
		}
		if pitcher.Assignments[0].Shares != 2 || pitcher.Assignments[1].Participant != kid {
			t.Errorf("pitcher assignments out of order: %+v", pitcher.Assignments)
		}
		if !retrieved.Items[2].IsTaxTip {
			t.Error("tax/tip flag lost in round trip")
		}
	})

	t.Run("ReplaceExpense replaces whole record", func(t *testing.T) {
		expense := &models.Expense{
			GroupID:      "trip",
			Description:  "Taxi",
			Amount:       3000,
			Currency:     models.EUR,
			Date:         time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			Payer:        bob,
			SplitType:    models.SplitExact,
			Participants: []models.ParticipantID{alice, bob},
			Shares: []models.SplitShare{
				{Participant: alice, Amount: 1000},
				{Participant: bob, Amount: 2000},
			},
		}
		if err := store.ReplaceExpense(ctx, expense); err != nil {
			t.Fatalf("ReplaceExpense failed: %v", err)
		}

		expense.SplitType = models.SplitEqual
		expense.Shares = nil
		if err := store.ReplaceExpense(ctx, expense); err != nil {
			t.Fatalf("second ReplaceExpense failed: %v", err)
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if retrieved.SplitType != models.SplitEqual {
			t.Errorf("split type = %s, want EQUAL", retrieved.SplitType)
		}
		if len(retrieved.Shares) != 0 {
			t.Errorf("stale shares survived replace: %v", retrieved.Shares)
		}
	})

	t.Run("ListExpenses scopes by group", func(t *testing.T) {
		other := &models.Expense{
			GroupID:      "other-group",
			Description:  "Coffee",
			Amount:       500,
			Currency:     models.USD,
			Date:         time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
			Payer:        alice,
			SplitType:    models.SplitEqual,
			Participants: []models.ParticipantID{alice},
		}
		if err := store.ReplaceExpense(ctx, other); err != nil {
			t.Fatalf("ReplaceExpense failed: %v", err)
		}

		expenses, err := store.ListExpenses(ctx, "trip")
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		for _, e := range expenses {
			if e.GroupID != "trip" {
				t.Errorf("expense %s from group %s leaked into trip", e.ID, e.GroupID)
			}
		}
	})

	t.Run("DeleteExpense removes record", func(t *testing.T) {
		expense := &models.Expense{
			GroupID:      "trip",
			Description:  "Doomed",
			Amount:       100,
			Currency:     models.USD,
			Date:         time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
			Payer:        alice,
			SplitType:    models.SplitEqual,
			Participants: []models.ParticipantID{alice},
		}
		if err := store.ReplaceExpense(ctx, expense); err != nil {
			t.Fatalf("ReplaceExpense failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, expense.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}
		if _, err := store.GetExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetExpense after delete = %v, want %v", err, storage.ErrNotFound)
		}
		if err := store.DeleteExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second DeleteExpense = %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("settlement round trip", func(t *testing.T) {
		settlement := &models.Settlement{
			GroupID:  "trip",
			From:     bob,
			To:       alice,
			Amount:   1500,
			Currency: models.USD,
			Note:     "taxi share",
		}
		if err := store.CreateSettlement(ctx, settlement); err != nil {
			t.Fatalf("CreateSettlement failed: %v", err)
		}
		if settlement.ID == "" {
			t.Error("Expected settlement ID to be generated")
		}

		settlements, err := store.ListSettlements(ctx, "trip")
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(settlements) != 1 {
			t.Fatalf("settlements = %d, want 1", len(settlements))
		}
		got := settlements[0]
		if got.From != bob || got.To != alice || got.Amount != 1500 || got.Note != "taxi share" {
			t.Errorf("settlement round trip mismatch: %+v", got)
		}
	})

	t.Run("relationships round trip with validation", func(t *testing.T) {
		if err := store.SetManager(ctx, "trip", kid, alice); err != nil {
			t.Fatalf("SetManager failed: %v", err)
		}
		if err := store.ClaimGuest(ctx, "trip", models.Guest("plus-one"), bob); err != nil {
			t.Fatalf("ClaimGuest failed: %v", err)
		}

		rel, err := store.Relationships(ctx, "trip")
		if err != nil {
			t.Fatalf("Relationships failed: %v", err)
		}
		if rel.Managers[kid] != alice {
			t.Errorf("manager of %s = %s, want %s", kid, rel.Managers[kid], alice)
		}
		if rel.Claims[models.Guest("plus-one")] != bob {
			t.Errorf("claimer = %s, want %s", rel.Claims[models.Guest("plus-one")], bob)
		}

		// Cycle rejected at write time.
		if err := store.SetManager(ctx, "trip", alice, kid); err == nil {
			t.Error("SetManager accepted a cycle")
		}
		// Claims are set-once.
		if err := store.ClaimGuest(ctx, "trip", models.Guest("plus-one"), alice); err == nil {
			t.Error("ClaimGuest accepted a second claim")
		}
		// Claimed guests cannot be managed.
		if err := store.SetManager(ctx, "trip", models.Guest("plus-one"), alice); err == nil {
			t.Error("SetManager accepted a claimed guest as entity")
		}

		// Re-pointing an existing edge is allowed.
		if err := store.SetManager(ctx, "trip", kid, bob); err != nil {
			t.Fatalf("SetManager update failed: %v", err)
		}
		rel, err = store.Relationships(ctx, "trip")
		if err != nil {
			t.Fatalf("Relationships failed: %v", err)
		}
		if rel.Managers[kid] != bob {
			t.Errorf("manager of %s = %s, want %s", kid, rel.Managers[kid], bob)
		}

		if err := store.RemoveManager(ctx, "trip", kid); err != nil {
			t.Fatalf("RemoveManager failed: %v", err)
		}
		rel, err = store.Relationships(ctx, "trip")
		if err != nil {
			t.Fatalf("Relationships failed: %v", err)
		}
		if _, ok := rel.Managers[kid]; ok {
			t.Error("manager link survived RemoveManager")
		}
	})
}
