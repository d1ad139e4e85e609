package storage

import (
	"fmt"

	"github.com/mmynk/settler/internal/engine"
	"github.com/mmynk/settler/internal/models"
)

// ValidateManagerEdge checks a proposed management edge against a group's
// current relationships before it is written: no self-management, no
// managing a claimed guest, no claimed guest as manager, and the edge set
// must stay acyclic. Store implementations share this so every backend
// enforces the same write-time invariants.
func ValidateManagerEdge(rel models.Relationships, entity, manager models.ParticipantID) error {
	if entity == manager {
		return fmt.Errorf("%w: %s cannot manage itself", engine.ErrManagementCycle, entity)
	}
	if _, claimed := rel.Claims[entity]; claimed {
		return fmt.Errorf("cannot manage claimed guest %s", entity)
	}
	if _, claimed := rel.Claims[manager]; claimed {
		return fmt.Errorf("claimed guest %s cannot be a manager", manager)
	}

	next := models.NewRelationships()
	for g, u := range rel.Claims {
		next.Claims[g] = u
	}
	for e, m := range rel.Managers {
		next.Managers[e] = m
	}
	next.Managers[entity] = manager
	if _, err := engine.NewResolver(next); err != nil {
		return err
	}
	return nil
}

// ValidateClaim checks a proposed guest claim: guests claim users, claims
// are set once.
func ValidateClaim(rel models.Relationships, guest, user models.ParticipantID) error {
	if guest.Kind != models.KindGuest {
		return fmt.Errorf("%s is not a guest", guest)
	}
	if user.Kind != models.KindUser {
		return fmt.Errorf("%s is not a registered user", user)
	}
	if claimer, claimed := rel.Claims[guest]; claimed {
		return fmt.Errorf("guest %s already claimed by %s", guest, claimer)
	}
	return nil
}
