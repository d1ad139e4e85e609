package models

// Relationships is a group's identity-resolution input: who has claimed whom,
// and who manages whom. The engine reads it as an immutable snapshot; the
// write paths (claiming, managing) live with the storage layer.
type Relationships struct {
	// Claims maps a claimed guest to the registered user that claimed it.
	// A claim is set once and never cleared: from then on the guest is an
	// alias for the user in every display and aggregation context.
	Claims map[ParticipantID]ParticipantID

	// Managers maps a managed entity to its manager. Restricted to
	// non-claimed participants the edge set must form a forest: no cycles,
	// at most one manager per entity. Edges written before a guest was
	// claimed are resolved lazily through Claims rather than retargeted.
	Managers map[ParticipantID]ParticipantID
}

// NewRelationships returns an empty, non-nil relationship set.
func NewRelationships() Relationships {
	return Relationships{
		Claims:   make(map[ParticipantID]ParticipantID),
		Managers: make(map[ParticipantID]ParticipantID),
	}
}
