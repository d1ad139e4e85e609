// Package events defines the publisher contract for ledger change
// notifications. Implementations deliver events to downstream consumers
// such as notification and activity-feed services.
package events

import "context"

// Topics published by the ledger.
const (
	TopicExpenseRecorded     = "expense_recorded"
	TopicSettlementCreated   = "settlement_created"
	TopicGuestClaimed        = "guest_claimed"
	TopicSettlementPlanReady = "settlement_plan_computed"
)

// Publisher delivers ledger events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Noop discards every event. It is the default when no broker is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, topic string, event any) error { return nil }

func (Noop) Close() error { return nil }
