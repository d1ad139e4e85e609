package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settler/internal/models"
)

func equalExpense(payer models.ParticipantID, amount int64, currency models.Currency, participants ...models.ParticipantID) models.Expense {
	return models.Expense{
		Amount:       amount,
		Currency:     currency,
		Payer:        payer,
		SplitType:    models.SplitEqual,
		Participants: participants,
	}
}

func TestComputeBalances(t *testing.T) {
	rel := models.NewRelationships()

	// Alice pays 3000 for everyone, Bob pays 900 for Bob and Charlie.
	expenses := []models.Expense{
		equalExpense(alice, 3000, models.USD, alice, bob, charlie),
		equalExpense(bob, 900, models.USD, bob, charlie),
	}

	sheet, err := ComputeBalances(expenses, rel)
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}

	want := models.BalanceSheet{
		{Root: alice, Currency: models.USD}: 2000,
		{Root: bob, Currency: models.USD}:   -550,
		{Root: charlie, Currency: models.USD}: -1450,
	}
	if !reflect.DeepEqual(sheet, want) {
		t.Errorf("sheet = %v, want %v", sheet, want)
	}
}

func TestComputeBalancesPayerNotParticipant(t *testing.T) {
	rel := models.NewRelationships()
	expenses := []models.Expense{
		// Diana pays but owes nothing herself.
		equalExpense(diana, 1000, models.EUR, alice, bob),
	}
	sheet, err := ComputeBalances(expenses, rel)
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}
	want := models.BalanceSheet{
		{Root: diana, Currency: models.EUR}: 1000,
		{Root: alice, Currency: models.EUR}: -500,
		{Root: bob, Currency: models.EUR}:   -500,
	}
	if !reflect.DeepEqual(sheet, want) {
		t.Errorf("sheet = %v, want %v", sheet, want)
	}
}

func TestComputeBalancesMultiCurrency(t *testing.T) {
	rel := models.NewRelationships()
	expenses := []models.Expense{
		equalExpense(alice, 1000, models.USD, alice, bob),
		equalExpense(bob, 4000, models.EUR, alice, bob),
	}
	sheet, err := ComputeBalances(expenses, rel)
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}

	// Currencies never fold together.
	want := models.BalanceSheet{
		{Root: alice, Currency: models.USD}: 500,
		{Root: bob, Currency: models.USD}:   -500,
		{Root: alice, Currency: models.EUR}: -2000,
		{Root: bob, Currency: models.EUR}:   2000,
	}
	if !reflect.DeepEqual(sheet, want) {
		t.Errorf("sheet = %v, want %v", sheet, want)
	}
	assertZeroSum(t, sheet)
}

func TestComputeBalancesManagementFold(t *testing.T) {
	kid := models.Guest("kid")
	plusOne := models.Guest("plus-one")

	rel := models.NewRelationships()
	rel.Managers[kid] = alice    // alice absorbs the kid's share
	rel.Claims[plusOne] = bob    // bob absorbs the plus-one by claim

	expenses := []models.Expense{
		equalExpense(charlie, 4000, models.USD, alice, kid, plusOne, charlie),
	}
	sheet, err := ComputeBalances(expenses, rel)
	if err != nil {
		t.Fatalf("ComputeBalances failed: %v", err)
	}

	want := models.BalanceSheet{
		{Root: alice, Currency: models.USD}:   -2000, // own 1000 + kid's 1000
		{Root: bob, Currency: models.USD}:     -1000, // claimed plus-one
		{Root: charlie, Currency: models.USD}: 3000,
	}
	if !reflect.DeepEqual(sheet, want) {
		t.Errorf("sheet = %v, want %v", sheet, want)
	}
	assertZeroSum(t, sheet)
}

func TestComputeBalancesCycleFailsWhole(t *testing.T) {
	rel := models.NewRelationships()
	rel.Managers[alice] = bob
	rel.Managers[bob] = alice

	expenses := []models.Expense{
		equalExpense(alice, 1000, models.USD, alice, bob),
	}
	if _, err := ComputeBalances(expenses, rel); !errors.Is(err, ErrManagementCycle) {
		t.Fatalf("error = %v, want %v", err, ErrManagementCycle)
	}
}

func TestComputeBalancesIdempotent(t *testing.T) {
	rel := models.NewRelationships()
	rel.Managers[models.Guest("kid")] = alice

	expenses := []models.Expense{
		equalExpense(alice, 3333, models.USD, alice, bob, charlie),
		equalExpense(bob, 750, models.EUR, models.Guest("kid"), bob),
	}

	first, err := ComputeBalances(expenses, rel)
	if err != nil {
		t.Fatalf("first ComputeBalances failed: %v", err)
	}
	second, err := ComputeBalances(expenses, rel)
	if err != nil {
		t.Fatalf("second ComputeBalances failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recomputation differs: %v vs %v", first, second)
	}
}

func TestApplySettlements(t *testing.T) {
	rel := models.NewRelationships()
	sheet := models.BalanceSheet{
		{Root: alice, Currency: models.USD}: 1000,
		{Root: bob, Currency: models.USD}:   -1000,
	}

	settled, err := ApplySettlements(sheet, []models.Settlement{
		{ID: "s1", From: bob, To: alice, Amount: 600, Currency: models.USD},
	}, rel)
	if err != nil {
		t.Fatalf("ApplySettlements failed: %v", err)
	}

	want := models.BalanceSheet{
		{Root: alice, Currency: models.USD}: 400,
		{Root: bob, Currency: models.USD}:   -400,
	}
	if !reflect.DeepEqual(settled, want) {
		t.Errorf("settled = %v, want %v", settled, want)
	}
	assertZeroSum(t, settled)

	// Full settlement clears both entries.
	cleared, err := ApplySettlements(settled, []models.Settlement{
		{ID: "s2", From: bob, To: alice, Amount: 400, Currency: models.USD},
	}, rel)
	if err != nil {
		t.Fatalf("ApplySettlements failed: %v", err)
	}
	if len(cleared) != 0 {
		t.Errorf("cleared sheet = %v, want empty", cleared)
	}

	// The input sheet is untouched.
	if sheet[models.BalanceKey{Root: alice, Currency: models.USD}] != 1000 {
		t.Error("input sheet was mutated")
	}
}

func TestApplySettlementsInvalidAmount(t *testing.T) {
	rel := models.NewRelationships()
	_, err := ApplySettlements(models.BalanceSheet{}, []models.Settlement{
		{ID: "s1", From: bob, To: alice, Amount: 0, Currency: models.USD},
	}, rel)
	if !errors.Is(err, ErrInvalidSplitSpec) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidSplitSpec)
	}
}

func TestNormalizeBalances(t *testing.T) {
	rates := RateTable{
		models.USD: decimal.NewFromInt(1),
		models.EUR: decimal.RequireFromString("1.08"),
	}
	sheet := models.BalanceSheet{
		{Root: alice, Currency: models.USD}: 500,
		{Root: alice, Currency: models.EUR}: 1000,
		{Root: bob, Currency: models.USD}:   -500,
		{Root: bob, Currency: models.EUR}:   -1000,
	}

	got, err := NormalizeBalances(sheet, rates, models.USD)
	if err != nil {
		t.Fatalf("NormalizeBalances failed: %v", err)
	}
	want := map[models.ParticipantID]int64{
		alice: 1580, // 500 + 1000*1.08
		bob:   -1580,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalized = %v, want %v", got, want)
	}

	var sum int64
	for _, v := range got {
		sum += v
	}
	if sum != 0 {
		t.Errorf("normalized balances sum to %d, want 0", sum)
	}
}

func TestNormalizeBalancesRoundingStaysZeroSum(t *testing.T) {
	// A rate chosen so per-root rounding would break the zero sum without
	// residue correction: 1, 1, -2 EUR cents at 1.5 round to 2, 2, -3.
	rates := RateTable{
		models.USD: decimal.NewFromInt(1),
		models.EUR: decimal.RequireFromString("1.5"),
	}
	sheet := models.BalanceSheet{
		{Root: alice, Currency: models.EUR}:   1,
		{Root: bob, Currency: models.EUR}:     1,
		{Root: charlie, Currency: models.EUR}: -2,
	}

	got, err := NormalizeBalances(sheet, rates, models.USD)
	if err != nil {
		t.Fatalf("NormalizeBalances failed: %v", err)
	}
	var sum int64
	for _, v := range got {
		sum += v
	}
	if sum != 0 {
		t.Errorf("normalized balances sum to %d, want 0: %v", sum, got)
	}

	if _, err := NormalizeBalances(sheet, rates, models.GBP); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("missing target rate error = %v, want %v", err, ErrRateUnavailable)
	}
}

func assertZeroSum(t *testing.T, sheet models.BalanceSheet) {
	t.Helper()
	sums := make(map[models.Currency]int64)
	for key, amount := range sheet {
		sums[key.Currency] += amount
	}
	for currency, sum := range sums {
		if sum != 0 {
			t.Errorf("%s balances sum to %d, want 0", currency, sum)
		}
	}
}
