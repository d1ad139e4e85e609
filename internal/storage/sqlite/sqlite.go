// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/storage"
)

// dateLayout is how calendar dates are stored; expenses carry no
// time-of-day.
const dateLayout = "2006-01-02"

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceExpense persists the expense whole in one transaction: the old
// version and its child rows are deleted, then everything is reinserted in
// order. Partial field edits to split data never happen.
func (s *SQLiteStore) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
	if expense.GroupID == "" {
		return fmt.Errorf("expense has no group")
	}
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Child rows cascade.
	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to clear previous expense: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, amount, currency, date, payer_kind, payer_id, split_type, pinned_rate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Description, expense.Amount, string(expense.Currency),
		expense.Date.Format(dateLayout), string(expense.Payer.Kind), expense.Payer.ID,
		string(expense.SplitType), expense.PinnedRate, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i, p := range expense.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, position, kind, participant_id) VALUES (?, ?, ?, ?)",
			expense.ID, i, string(p.Kind), p.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for i, share := range expense.Shares {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, position, kind, participant_id, amount, basis_points, share_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, i, string(share.Participant.Kind), share.Participant.ID,
			share.Amount, share.BasisPoints, share.Shares,
		)
		if err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}

	for i := range expense.Items {
		item := &expense.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_items (id, expense_id, position, description, price, is_tax_tip, split_type)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, expense.ID, i, item.Description, item.Price, boolToInt(item.IsTaxTip), string(item.SplitType),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
		for j, a := range item.Assignments {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO item_assignments (item_id, position, kind, participant_id, amount, basis_points, share_count)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				item.ID, j, string(a.Participant.Kind), a.Participant.ID, a.Amount, a.BasisPoints, a.Shares,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item assignment: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetExpense retrieves one expense with its participants, shares and items.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, description, amount, currency, date, payer_kind, payer_id, split_type, pinned_rate, created_at
		 FROM expenses WHERE id = ?`, expenseID)

	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadExpenseChildren(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses retrieves a group's expenses, oldest first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, description, amount, currency, date, payer_kind, payer_id, split_type, pinned_rate, created_at
		 FROM expenses WHERE group_id = ? ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		if err := s.loadExpenseChildren(ctx, &expenses[i]); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

// DeleteExpense removes an expense; child rows cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	var e models.Expense
	var currency, date, payerKind, payerID, splitType string
	err := row.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &currency, &date,
		&payerKind, &payerID, &splitType, &e.PinnedRate, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Currency = models.Currency(currency)
	e.Payer = models.ParticipantID{Kind: models.ParticipantKind(payerKind), ID: payerID}
	e.SplitType = models.SplitType(splitType)
	e.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	return &e, nil
}

func (s *SQLiteStore) loadExpenseChildren(ctx context.Context, e *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, participant_id FROM expense_participants WHERE expense_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		e.Participants = append(e.Participants, models.ParticipantID{Kind: models.ParticipantKind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}

	shareRows, err := s.db.QueryContext(ctx,
		`SELECT kind, participant_id, amount, basis_points, share_count
		 FROM expense_shares WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load shares: %w", err)
	}
	defer shareRows.Close()
	for shareRows.Next() {
		share, err := scanShare(shareRows)
		if err != nil {
			return fmt.Errorf("failed to scan share: %w", err)
		}
		e.Shares = append(e.Shares, share)
	}
	if err := shareRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate shares: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		`SELECT id, description, price, is_tax_tip, split_type
		 FROM expense_items WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item models.ExpenseItem
		var taxTip int
		var splitType string
		if err := itemRows.Scan(&item.ID, &item.Description, &item.Price, &taxTip, &splitType); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		item.IsTaxTip = taxTip != 0
		item.SplitType = models.SplitType(splitType)
		e.Items = append(e.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate items: %w", err)
	}

	for i := range e.Items {
		item := &e.Items[i]
		aRows, err := s.db.QueryContext(ctx,
			`SELECT kind, participant_id, amount, basis_points, share_count
			 FROM item_assignments WHERE item_id = ? ORDER BY position`, item.ID)
		if err != nil {
			return fmt.Errorf("failed to load item assignments: %w", err)
		}
		for aRows.Next() {
			share, err := scanShare(aRows)
			if err != nil {
				aRows.Close()
				return fmt.Errorf("failed to scan item assignment: %w", err)
			}
			item.Assignments = append(item.Assignments, share)
		}
		if err := aRows.Err(); err != nil {
			aRows.Close()
			return fmt.Errorf("failed to iterate item assignments: %w", err)
		}
		aRows.Close()
	}
	return nil
}

func scanShare(row scanner) (models.SplitShare, error) {
	var share models.SplitShare
	var kind, id string
	if err := row.Scan(&kind, &id, &share.Amount, &share.BasisPoints, &share.Shares); err != nil {
		return models.SplitShare{}, err
	}
	share.Participant = models.ParticipantID{Kind: models.ParticipantKind(kind), ID: id}
	return share, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
