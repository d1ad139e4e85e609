package models

import "fmt"

// ParticipantKind distinguishes registered users from unregistered guests.
type ParticipantKind string

const (
	// KindUser is a registered user account.
	KindUser ParticipantKind = "user"

	// KindGuest is an unregistered guest added to a group by name.
	// A guest may later be claimed by a registered user, after which it is
	// permanently an alias for that user.
	KindGuest ParticipantKind = "guest"
)

// ParticipantID identifies a participant within a group. It is a comparable
// value usable as a map key. Guests and users live in separate keyspaces, so
// a guest and a user with the same underlying ID never collide.
type ParticipantID struct {
	Kind ParticipantKind
	ID   string
}

// User builds the ID of a registered user.
func User(id string) ParticipantID {
	return ParticipantID{Kind: KindUser, ID: id}
}

// Guest builds the ID of a guest participant.
func Guest(id string) ParticipantID {
	return ParticipantID{Kind: KindGuest, ID: id}
}

// IsZero reports whether p is the zero value (no participant).
func (p ParticipantID) IsZero() bool {
	return p.Kind == "" && p.ID == ""
}

// Less defines a total order over participant IDs, used wherever
// deterministic tie-breaking is required. Users sort before guests, then by
// ID lexicographically.
func (p ParticipantID) Less(other ParticipantID) bool {
	if p.Kind != other.Kind {
		return p.Kind == KindUser
	}
	return p.ID < other.ID
}

// String renders e.g. "user:42" or "guest:7".
func (p ParticipantID) String() string {
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}
