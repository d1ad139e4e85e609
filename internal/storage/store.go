// Package storage provides the record accessors the settlement engine reads
// its snapshots from.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/settler/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the accessor set for expenses, settlements and relationship
// records. The abstraction allows swapping backends (SQLite, PostgreSQL,
// in-memory) without changing the service layer.
//
// Writes follow the replace-and-recompute lifecycle: an expense is always
// persisted whole, never patched field by field, so the engine can
// regenerate splits from a consistent record. Reads return a consistent
// snapshot per call; cross-call consistency is the caller's transaction
// concern.
type Store interface {
	// ReplaceExpense persists an expense whole, overwriting any previous
	// version along with its shares and items. A new expense gets its ID
	// and CreatedAt populated.
	ReplaceExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves one expense by ID.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses retrieves all expenses of a group, oldest first.
	ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// DeleteExpense removes an expense and its derived records.
	DeleteExpense(ctx context.Context, expenseID string) error

	// CreateSettlement records a payment between two participants.
	// The settlement gets its ID and CreatedAt populated.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error

	// ListSettlements retrieves all settlements of a group, oldest first.
	ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error)

	// SetManager links a managed entity to its manager within a group.
	// Claimed guests cannot be managed and nothing manages itself; edges
	// are validated acyclic against the group's current edge set.
	SetManager(ctx context.Context, groupID string, entity, manager models.ParticipantID) error

	// RemoveManager clears an entity's manager link.
	RemoveManager(ctx context.Context, groupID string, entity models.ParticipantID) error

	// ClaimGuest marks a guest as claimed by a registered user. A claim is
	// set once: claiming an already-claimed guest fails. Management edges
	// touching the guest are left in place and resolved lazily by the
	// engine.
	ClaimGuest(ctx context.Context, groupID string, guest, user models.ParticipantID) error

	// Relationships returns the group's claim pointers and management
	// edges as one snapshot.
	Relationships(ctx context.Context, groupID string) (models.Relationships, error)

	// Close releases any resources held by the store.
	Close() error
}
