// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/storage"
)

const dateLayout = "2006-01-02"

// schema mirrors the SQLite layout with PostgreSQL types.
const schema = `
CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    description TEXT NOT NULL,
    amount BIGINT NOT NULL,
    currency TEXT NOT NULL,
    date TEXT NOT NULL,
    payer_kind TEXT NOT NULL,
    payer_id TEXT NOT NULL,
    split_type TEXT NOT NULL,
    pinned_rate TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    kind TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    PRIMARY KEY (expense_id, position)
);

CREATE TABLE IF NOT EXISTS expense_shares (
    expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    kind TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    basis_points BIGINT NOT NULL DEFAULT 0,
    share_count BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (expense_id, position)
);

CREATE TABLE IF NOT EXISTS expense_items (
    id TEXT PRIMARY KEY,
    expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    description TEXT NOT NULL,
    price BIGINT NOT NULL,
    is_tax_tip BOOLEAN NOT NULL DEFAULT FALSE,
    split_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS item_assignments (
    item_id TEXT NOT NULL REFERENCES expense_items(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    kind TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    basis_points BIGINT NOT NULL DEFAULT 0,
    share_count BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (item_id, position)
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    from_kind TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_kind TEXT NOT NULL,
    to_id TEXT NOT NULL,
    amount BIGINT NOT NULL,
    currency TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS management_edges (
    group_id TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    manager_kind TEXT NOT NULL,
    manager_id TEXT NOT NULL,
    PRIMARY KEY (group_id, entity_kind, entity_id)
);

CREATE TABLE IF NOT EXISTS guest_claims (
    group_id TEXT NOT NULL,
    guest_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (group_id, guest_id)
);

CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id);
CREATE INDEX IF NOT EXISTS idx_settlements_group_id ON settlements(group_id);
`

// Ensure PostgresStore implements storage.Store
var _ storage.Store = (*PostgresStore)(nil)

// PostgresStore implements storage.Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// New connects with the given DSN and ensures the schema exists.
func New(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ReplaceExpense persists the expense whole in one transaction.
func (s *PostgresStore) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = $1", expense.ID); err != nil {
		return fmt.Errorf("failed to clear previous expense: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, amount, currency, date, payer_kind, payer_id, split_type, pinned_rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		expense.ID, expense.GroupID, expense.Description, expense.Amount, string(expense.Currency),
		expense.Date.Format(dateLayout), string(expense.Payer.Kind), expense.Payer.ID,
		string(expense.SplitType), expense.PinnedRate, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i, p := range expense.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, position, kind, participant_id) VALUES ($1, $2, $3, $4)",
			expense.ID, i, string(p.Kind), p.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	for i, share := range expense.Shares {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, position, kind, participant_id, amount, basis_points, share_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, expense.ID, i, item.Description, item.Price, item.IsTaxTip, string(item.SplitType),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
		for j, a := range item.Assignments {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO item_assignments (item_id, position, kind, participant_id, amount, basis_points, share_count)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, description, amount, currency, date, payer_kind, payer_id, split_type, pinned_rate, created_at
		 FROM expenses WHERE id = $1`, expenseID)

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
func (s *PostgresStore) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, description, amount, currency, date, payer_kind, payer_id, split_type, pinned_rate, created_at
		 FROM expenses WHERE group_id = $1 ORDER BY created_at, id`, groupID)
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
func (s *PostgresStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = $1", expenseID)
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

// CreateSettlement records a payment between two participants.
func (s *PostgresStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.Amount <= 0 {
		return fmt.Errorf("settlement amount must be positive")
	}
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, from_kind, from_id, to_kind, to_id, amount, currency, created_at, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		settlement.ID, settlement.GroupID,
		string(settlement.From.Kind), settlement.From.ID,
		string(settlement.To.Kind), settlement.To.ID,
		settlement.Amount, string(settlement.Currency), settlement.CreatedAt, settlement.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// ListSettlements retrieves a group's settlements, oldest first.
func (s *PostgresStore) ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_kind, from_id, to_kind, to_id, amount, currency, created_at, note
		 FROM settlements WHERE group_id = $1 ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var st models.Settlement
		var fromKind, fromID, toKind, toID, currency string
		err := rows.Scan(&st.ID, &st.GroupID, &fromKind, &fromID, &toKind, &toID,
			&st.Amount, &currency, &st.CreatedAt, &st.Note)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		st.From = models.ParticipantID{Kind: models.ParticipantKind(fromKind), ID: fromID}
		st.To = models.ParticipantID{Kind: models.ParticipantKind(toKind), ID: toID}
		st.Currency = models.Currency(currency)
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// SetManager links entity to manager after validating the resulting graph.
func (s *PostgresStore) SetManager(ctx context.Context, groupID string, entity, manager models.ParticipantID) error {
	rel, err := s.Relationships(ctx, groupID)
	if err != nil {
		return err
	}
	delete(rel.Managers, entity)
	if err := storage.ValidateManagerEdge(rel, entity, manager); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO management_edges (group_id, entity_kind, entity_id, manager_kind, manager_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (group_id, entity_kind, entity_id)
		 DO UPDATE SET manager_kind = EXCLUDED.manager_kind, manager_id = EXCLUDED.manager_id`,
		groupID, string(entity.Kind), entity.ID, string(manager.Kind), manager.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to set manager: %w", err)
	}
	return nil
}

// RemoveManager clears an entity's manager link.
func (s *PostgresStore) RemoveManager(ctx context.Context, groupID string, entity models.ParticipantID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM management_edges WHERE group_id = $1 AND entity_kind = $2 AND entity_id = $3",
		groupID, string(entity.Kind), entity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove manager: %w", err)
	}
	return nil
}

// ClaimGuest marks a guest as permanently claimed by a user.
func (s *PostgresStore) ClaimGuest(ctx context.Context, groupID string, guest, user models.ParticipantID) error {
	rel, err := s.Relationships(ctx, groupID)
	if err != nil {
		return err
	}
	if err := storage.ValidateClaim(rel, guest, user); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO guest_claims (group_id, guest_id, user_id) VALUES ($1, $2, $3)",
		groupID, guest.ID, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim guest: %w", err)
	}
	return nil
}

// Relationships returns the group's claim pointers and management edges.
func (s *PostgresStore) Relationships(ctx context.Context, groupID string) (models.Relationships, error) {
	rel := models.NewRelationships()

	rows, err := s.db.QueryContext(ctx,
		"SELECT guest_id, user_id FROM guest_claims WHERE group_id = $1", groupID)
	if err != nil {
		return rel, fmt.Errorf("failed to load claims: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var guestID, userID string
		if err := rows.Scan(&guestID, &userID); err != nil {
			return rel, fmt.Errorf("failed to scan claim: %w", err)
		}
		rel.Claims[models.Guest(guestID)] = models.User(userID)
	}
	if err := rows.Err(); err != nil {
		return rel, fmt.Errorf("failed to iterate claims: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx,
		"SELECT entity_kind, entity_id, manager_kind, manager_id FROM management_edges WHERE group_id = $1", groupID)
	if err != nil {
		return rel, fmt.Errorf("failed to load management edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var entityKind, entityID, managerKind, managerID string
		if err := edgeRows.Scan(&entityKind, &entityID, &managerKind, &managerID); err != nil {
			return rel, fmt.Errorf("failed to scan management edge: %w", err)
		}
		rel.Managers[models.ParticipantID{Kind: models.ParticipantKind(entityKind), ID: entityID}] =
			models.ParticipantID{Kind: models.ParticipantKind(managerKind), ID: managerID}
	}
	if err := edgeRows.Err(); err != nil {
		return rel, fmt.Errorf("failed to iterate management edges: %w", err)
	}
	return rel, nil
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

func (s *PostgresStore) loadExpenseChildren(ctx context.Context, e *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, participant_id FROM expense_participants WHERE expense_id = $1 ORDER BY position", e.ID)
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
		 FROM expense_shares WHERE expense_id = $1 ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load shares: %w", err)
	}
	defer shareRows.Close()
	for shareRows.Next() {
		var share models.SplitShare
		var kind, id string
		if err := shareRows.Scan(&kind, &id, &share.Amount, &share.BasisPoints, &share.Shares); err != nil {
			return fmt.Errorf("failed to scan share: %w", err)
		}
		share.Participant = models.ParticipantID{Kind: models.ParticipantKind(kind), ID: id}
		e.Shares = append(e.Shares, share)
	}
	if err := shareRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate shares: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		`SELECT id, description, price, is_tax_tip, split_type
		 FROM expense_items WHERE expense_id = $1 ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item models.ExpenseItem
		var splitType string
		if err := itemRows.Scan(&item.ID, &item.Description, &item.Price, &item.IsTaxTip, &splitType); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
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
			 FROM item_assignments WHERE item_id = $1 ORDER BY position`, item.ID)
		if err != nil {
			return fmt.Errorf("failed to load item assignments: %w", err)
		}
		for aRows.Next() {
			var share models.SplitShare
			var kind, id string
			if err := aRows.Scan(&kind, &id, &share.Amount, &share.BasisPoints, &share.Shares); err != nil {
				aRows.Close()
				return fmt.Errorf("failed to scan item assignment: %w", err)
			}
			share.Participant = models.ParticipantID{Kind: models.ParticipantKind(kind), ID: id}
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
