package engine

import (
	"fmt"

	"github.com/mmynk/settler/internal/models"
)

// Resolver answers identity questions for one group's relationship snapshot:
// who a participant should be displayed as, and whose balance ultimately
// absorbs theirs.
//
// Claims are resolved lazily: a management edge written before a guest was
// claimed is understood as keyed by (or pointing at) the claiming user, so
// edges never need physical retargeting at claim time.
type Resolver struct {
	claims   map[models.ParticipantID]models.ParticipantID
	managers map[models.ParticipantID]models.ParticipantID
}

// NewResolver normalizes and validates a relationship snapshot. Edges are
// rewritten through claim pointers; a raw self-edge, a cycle, or two edges
// that resolve to conflicting managers for one entity fail with
// ErrManagementCycle. Relationships are written by external collaborators,
// so this is a defensive check against corrupt input, not the primary
// validation.
func NewResolver(rel models.Relationships) (*Resolver, error) {
	r := &Resolver{
		claims:   rel.Claims,
		managers: make(map[models.ParticipantID]models.ParticipantID, len(rel.Managers)),
	}

	for guest, claimer := range rel.Claims {
		if guest.Kind != models.KindGuest || claimer.Kind != models.KindUser {
			return nil, fmt.Errorf("%w: claim %s -> %s must map a guest to a user", ErrManagementCycle, guest, claimer)
		}
	}

	for entity, manager := range rel.Managers {
		if entity == manager {
			return nil, fmt.Errorf("%w: %s manages itself", ErrManagementCycle, entity)
		}
		re := r.DisplayIdentity(entity)
		rm := r.DisplayIdentity(manager)
		if re == rm {
			// The edge collapsed onto one identity through a claim: the
			// managed entity's balance is already absorbed by the claimer.
			continue
		}
		if existing, ok := r.managers[re]; ok && existing != rm {
			return nil, fmt.Errorf("%w: %s has conflicting managers %s and %s", ErrManagementCycle, re, existing, rm)
		}
		r.managers[re] = rm
	}

	// Fail fast on any cycle, reachable from a balance or not.
	for entity := range r.managers {
		if _, err := r.AggregationRoot(entity); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DisplayIdentity returns the participant p should be shown and counted as:
// itself, or the claiming user if p is a claimed guest.
func (r *Resolver) DisplayIdentity(p models.ParticipantID) models.ParticipantID {
	if claimer, ok := r.claims[p]; ok {
		return claimer
	}
	return p
}

// AggregationRoot follows management edges upward from p's display identity
// until it reaches a participant with no manager. Chains may be arbitrarily
// deep; the walk is iterative with a visited set so corrupt input fails with
// ErrManagementCycle instead of looping.
func (r *Resolver) AggregationRoot(p models.ParticipantID) (models.ParticipantID, error) {
	current := r.DisplayIdentity(p)
	visited := map[models.ParticipantID]bool{current: true}
	for {
		manager, ok := r.managers[current]
		if !ok {
			return current, nil
		}
		if visited[manager] {
			return models.ParticipantID{}, fmt.Errorf("%w: detected at %s", ErrManagementCycle, manager)
		}
		visited[manager] = true
		current = manager
	}
}

// ResolveIdentity returns both identities of p in one call.
func (r *Resolver) ResolveIdentity(p models.ParticipantID) (display, root models.ParticipantID, err error) {
	display = r.DisplayIdentity(p)
	root, err = r.AggregationRoot(p)
	return display, root, err
}
