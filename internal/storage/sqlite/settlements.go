package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settler/internal/models"
)

// CreateSettlement records a payment between two participants.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
func (s *SQLiteStore) ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_kind, from_id, to_kind, to_id, amount, currency, created_at, note
		 FROM settlements WHERE group_id = ? ORDER BY created_at, id`, groupID)
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
