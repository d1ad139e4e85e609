// Package service orchestrates the ledger engine over a storage backend,
// a rate provider, and an event publisher.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/settler/internal/engine"
	"github.com/mmynk/settler/internal/events"
	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/rates"
	"github.com/mmynk/settler/internal/storage"
)

// LedgerService coordinates expense recording, balance aggregation and
// settlement planning for groups.
type LedgerService struct {
	store     storage.Store
	rates     rates.Provider
	publisher events.Publisher
}

// NewLedgerService creates a service over the given backends. A nil
// publisher falls back to a no-op.
func NewLedgerService(store storage.Store, provider rates.Provider, publisher events.Publisher) *LedgerService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &LedgerService{store: store, rates: provider, publisher: publisher}
}

// RecordExpense validates the expense by computing its splits, then persists
// it. Recording an expense with an existing ID replaces it whole.
func (s *LedgerService) RecordExpense(ctx context.Context, expense *models.Expense) ([]models.ExpenseSplit, error) {
	splits, err := engine.ComputeSplits(expense)
	if err != nil {
		slog.Error("RecordExpense: split validation failed", "group_id", expense.GroupID, "error", err)
		return nil, err
	}

	if err := s.store.ReplaceExpense(ctx, expense); err != nil {
		slog.Error("RecordExpense: failed to persist", "group_id", expense.GroupID, "error", err)
		return nil, err
	}
	expensesRecorded.WithLabelValues(string(expense.SplitType)).Inc()

	s.publish(ctx, events.TopicExpenseRecorded, map[string]any{
		"expense_id": expense.ID,
		"group_id":   expense.GroupID,
		"amount":     expense.Amount,
		"currency":   expense.Currency,
	})
	return splits, nil
}

// GetExpense retrieves an expense by ID.
func (s *LedgerService) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return s.store.GetExpense(ctx, expenseID)
}

// DeleteExpense removes an expense from the ledger.
func (s *LedgerService) DeleteExpense(ctx context.Context, expenseID string) error {
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", expenseID, "error", err)
		return err
	}
	return nil
}

// CreateSettlement records a payment made outside the app and publishes
// the corresponding event.
func (s *LedgerService) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.Amount <= 0 {
		return fmt.Errorf("%w: settlement amount must be positive", engine.ErrInvalidSplitSpec)
	}
	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		slog.Error("CreateSettlement failed", "group_id", settlement.GroupID, "error", err)
		return err
	}
	settlementsCreated.Inc()

	s.publish(ctx, events.TopicSettlementCreated, map[string]any{
		"settlement_id": settlement.ID,
		"group_id":      settlement.GroupID,
		"from":          settlement.From.String(),
		"to":            settlement.To.String(),
		"amount":        settlement.Amount,
		"currency":      settlement.Currency,
	})
	return nil
}

// SetManager links a participant to a manager who answers for its balances.
func (s *LedgerService) SetManager(ctx context.Context, groupID string, entity, manager models.ParticipantID) error {
	if err := s.store.SetManager(ctx, groupID, entity, manager); err != nil {
		slog.Error("SetManager failed", "group_id", groupID, "entity", entity.String(), "manager", manager.String(), "error", err)
		return err
	}
	return nil
}

// RemoveManager clears a participant's manager link.
func (s *LedgerService) RemoveManager(ctx context.Context, groupID string, entity models.ParticipantID) error {
	return s.store.RemoveManager(ctx, groupID, entity)
}

// ClaimGuest permanently attributes a guest's history to a registered user.
func (s *LedgerService) ClaimGuest(ctx context.Context, groupID string, guest, user models.ParticipantID) error {
	if err := s.store.ClaimGuest(ctx, groupID, guest, user); err != nil {
		slog.Error("ClaimGuest failed", "group_id", groupID, "guest", guest.String(), "user", user.String(), "error", err)
		return err
	}

	s.publish(ctx, events.TopicGuestClaimed, map[string]any{
		"group_id": groupID,
		"guest":    guest.String(),
		"user":     user.String(),
	})
	return nil
}

// GroupBalances computes the group's per-currency net balances, with
// recorded settlements applied.
func (s *LedgerService) GroupBalances(ctx context.Context, groupID string) (models.BalanceSheet, error) {
	start := time.Now()
	defer func() {
		balanceComputeSeconds.Observe(time.Since(start).Seconds())
	}()

	expenses, err := s.store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, err
	}
	rel, err := s.store.Relationships(ctx, groupID)
	if err != nil {
		return nil, err
	}

	sheet, err := engine.ComputeBalances(expenses, rel)
	if err != nil {
		slog.Error("GroupBalances: compute failed", "group_id", groupID, "error", err)
		return nil, err
	}
	sheet, err = engine.ApplySettlements(sheet, settlements, rel)
	if err != nil {
		slog.Error("GroupBalances: settlements failed", "group_id", groupID, "error", err)
		return nil, err
	}
	return sheet, nil
}

// GroupBalancesIn computes the group's balances converted to a single
// target currency using current rates.
func (s *LedgerService) GroupBalancesIn(ctx context.Context, groupID string, target models.Currency) (map[models.ParticipantID]int64, error) {
	sheet, err := s.GroupBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}
	table, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrRateUnavailable, err)
	}
	return engine.NormalizeBalances(sheet, table, target)
}

// SettlementPlan produces a minimal set of transfers, in the target
// currency, that zeroes the group's balances.
func (s *LedgerService) SettlementPlan(ctx context.Context, groupID string, target models.Currency) ([]models.Transaction, error) {
	balances, err := s.GroupBalancesIn(ctx, groupID, target)
	if err != nil {
		return nil, err
	}
	plan, err := engine.SimplifyDebts(balances)
	if err != nil {
		slog.Error("SettlementPlan: simplify failed", "group_id", groupID, "error", err)
		return nil, err
	}

	s.publish(ctx, events.TopicSettlementPlanReady, map[string]any{
		"group_id":  groupID,
		"currency":  target,
		"transfers": len(plan),
	})
	return plan, nil
}

// publish sends an event, logging delivery failures without failing the
// operation that produced them.
func (s *LedgerService) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}
