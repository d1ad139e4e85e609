// Package memory provides an in-memory implementation of the storage.Store
// interface, used in tests and as the zero-setup CLI default.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps every record in maps guarded by one RWMutex. Reads copy, so a
// snapshot handed to the engine is never mutated under it.
type Store struct {
	mu            sync.RWMutex
	expenses      map[string]models.Expense
	settlements   map[string]models.Settlement
	relationships map[string]models.Relationships // by group ID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		expenses:      make(map[string]models.Expense),
		settlements:   make(map[string]models.Settlement),
		relationships: make(map[string]models.Relationships),
	}
}

// ReplaceExpense stores a deep copy of the expense, assigning ID and
// CreatedAt when absent.
func (s *Store) ReplaceExpense(_ context.Context, expense *models.Expense) error {
	if expense.GroupID == "" {
		return fmt.Errorf("expense has no group")
	}
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[expense.ID] = copyExpense(expense)
	return nil
}

// GetExpense retrieves one expense by ID.
func (s *Store) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[expenseID]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	out := copyExpense(&e)
	return &out, nil
}

// ListExpenses retrieves a group's expenses, oldest first.
func (s *Store) ListExpenses(_ context.Context, groupID string) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Expense
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			out = append(out, copyExpense(&e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteExpense removes an expense.
func (s *Store) DeleteExpense(_ context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[expenseID]; !ok {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	delete(s.expenses, expenseID)
	return nil
}

// CreateSettlement records a payment.
func (s *Store) CreateSettlement(_ context.Context, settlement *models.Settlement) error {
	if settlement.Amount <= 0 {
		return fmt.Errorf("settlement amount must be positive")
	}
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[settlement.ID] = *settlement
	return nil
}

// ListSettlements retrieves a group's settlements, oldest first.
func (s *Store) ListSettlements(_ context.Context, groupID string) ([]models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Settlement
	for _, st := range s.settlements {
		if st.GroupID == groupID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetManager links entity to manager after validating the resulting graph.
func (s *Store) SetManager(_ context.Context, groupID string, entity, manager models.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := s.group(groupID)
	if err := storage.ValidateManagerEdge(rel, entity, manager); err != nil {
		return err
	}
	rel.Managers[entity] = manager
	return nil
}

// RemoveManager clears an entity's manager link.
func (s *Store) RemoveManager(_ context.Context, groupID string, entity models.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.group(groupID).Managers, entity)
	return nil
}

// ClaimGuest marks a guest as permanently claimed by a user.
func (s *Store) ClaimGuest(_ context.Context, groupID string, guest, user models.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := s.group(groupID)
	if err := storage.ValidateClaim(rel, guest, user); err != nil {
		return err
	}
	rel.Claims[guest] = user
	return nil
}

// Relationships returns a copy of the group's relationship snapshot.
func (s *Store) Relationships(_ context.Context, groupID string) (models.Relationships, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel := s.group(groupID)
	out := models.NewRelationships()
	for g, u := range rel.Claims {
		out.Claims[g] = u
	}
	for e, m := range rel.Managers {
		out.Managers[e] = m
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// group returns the group's live relationship set, creating it on first use.
// Callers must hold mu.
func (s *Store) group(groupID string) models.Relationships {
	rel, ok := s.relationships[groupID]
	if !ok {
		rel = models.NewRelationships()
		s.relationships[groupID] = rel
	}
	return rel
}

func copyExpense(e *models.Expense) models.Expense {
	out := *e
	out.Participants = append([]models.ParticipantID(nil), e.Participants...)
	out.Shares = append([]models.SplitShare(nil), e.Shares...)
	out.Items = make([]models.ExpenseItem, len(e.Items))
	for i, item := range e.Items {
		out.Items[i] = item
		out.Items[i].Assignments = append([]models.SplitShare(nil), item.Assignments...)
	}
	return out
}
