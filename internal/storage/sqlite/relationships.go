package sqlite

import (
	"context"
	"fmt"

	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/storage"
)

// SetManager links entity to manager after validating the resulting graph
// against the group's current relationship snapshot.
func (s *SQLiteStore) SetManager(ctx context.Context, groupID string, entity, manager models.ParticipantID) error {
	rel, err := s.Relationships(ctx, groupID)
	if err != nil {
		return err
	}
	// The proposed edge replaces any existing edge for the entity.
	delete(rel.Managers, entity)
	if err := storage.ValidateManagerEdge(rel, entity, manager); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO management_edges (group_id, entity_kind, entity_id, manager_kind, manager_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, entity_kind, entity_id)
		 DO UPDATE SET manager_kind = excluded.manager_kind, manager_id = excluded.manager_id`,
		groupID, string(entity.Kind), entity.ID, string(manager.Kind), manager.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to set manager: %w", err)
	}
	return nil
}

// RemoveManager clears an entity's manager link.
func (s *SQLiteStore) RemoveManager(ctx context.Context, groupID string, entity models.ParticipantID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM management_edges WHERE group_id = ? AND entity_kind = ? AND entity_id = ?",
		groupID, string(entity.Kind), entity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove manager: %w", err)
	}
	return nil
}

// ClaimGuest marks a guest as permanently claimed by a user. Claims are set
// once; a second claim for the same guest fails.
func (s *SQLiteStore) ClaimGuest(ctx context.Context, groupID string, guest, user models.ParticipantID) error {
	rel, err := s.Relationships(ctx, groupID)
	if err != nil {
		return err
	}
	if err := storage.ValidateClaim(rel, guest, user); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO guest_claims (group_id, guest_id, user_id) VALUES (?, ?, ?)",
		groupID, guest.ID, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim guest: %w", err)
	}
	return nil
}

// Relationships returns the group's claim pointers and management edges as
// one snapshot.
func (s *SQLiteStore) Relationships(ctx context.Context, groupID string) (models.Relationships, error) {
	rel := models.NewRelationships()

	rows, err := s.db.QueryContext(ctx,
		"SELECT guest_id, user_id FROM guest_claims WHERE group_id = ?", groupID)
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
		"SELECT entity_kind, entity_id, manager_kind, manager_id FROM management_edges WHERE group_id = ?", groupID)
	if err != nil {
		return rel, fmt.Errorf("failed to load management edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var entityKind, entityID, managerKind, managerID string
		if err := edgeRows.Scan(&entityKind, &entityID, &managerKind, &managerID); err != nil {
			return rel, fmt.Errorf("failed to scan management edge: %w", err)
		}
		entity := models.ParticipantID{Kind: models.ParticipantKind(entityKind), ID: entityID}
		manager := models.ParticipantID{Kind: models.ParticipantKind(managerKind), ID: managerID}
		rel.Managers[entity] = manager
	}
	if err := edgeRows.Err(); err != nil {
		return rel, fmt.Errorf("failed to iterate management edges: %w", err)
	}
	return rel, nil
}
