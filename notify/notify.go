// Package notify is the typed notification bus: after a domain mutation
// commits, the engine fans the change out to registered subscribers
// (reporting, admin refresh, audit, metrics).
//
// Delivery is at-least-once and best-effort: a subscriber failure is logged
// and retried with bounded exponential backoff, never blocking or rolling
// back the committed domain state. Subscribers must be idempotent.
package notify

import (
	"context"

	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/subscription"
)

// Subscriber is the base interface all subscribers implement. Interest in
// specific notifications is declared by implementing the optional On*
// interfaces below.
type Subscriber interface {
	Name() string
}

// SubscriptionStateChange describes one lifecycle transition.
type SubscriptionStateChange struct {
	SubscriptionID string
	CustomerID     string
	From           subscription.State
	To             subscription.State
}

// BalanceChange describes one committed ledger adjustment.
type BalanceChange struct {
	CustomerID  string
	Delta       int64
	Balance     int64
	Reason      credit.Reason
	ExternalRef string
}

// UsageBilled describes one settled usage bucket.
type UsageBilled struct {
	SubscriptionItemID string
	Bucket             string
	Quantity           int64
}

// EventProcessed describes the terminal outcome of one inbound event.
type EventProcessed struct {
	EventID   string
	Type      event.Type
	Outcome   event.Outcome
	Duplicate bool
}

// Dunning describes a failed recurring payment needing follow-up.
type Dunning struct {
	CustomerID     string
	SubscriptionID string
}

// ──────────────────────────────────────────────────
// Optional subscriber interfaces
// ──────────────────────────────────────────────────

// OnSubscriptionStateChanged receives lifecycle transitions.
type OnSubscriptionStateChanged interface {
	Subscriber
	OnSubscriptionStateChanged(ctx context.Context, change SubscriptionStateChange) error
}

// OnCreditBalanceChanged receives committed balance adjustments.
type OnCreditBalanceChanged interface {
	Subscriber
	OnCreditBalanceChanged(ctx context.Context, change BalanceChange) error
}

// OnUsageBilled receives period-close settlements.
type OnUsageBilled interface {
	Subscriber
	OnUsageBilled(ctx context.Context, billed UsageBilled) error
}

// OnEventProcessed receives terminal event outcomes.
type OnEventProcessed interface {
	Subscriber
	OnEventProcessed(ctx context.Context, processed EventProcessed) error
}

// OnDunning receives failed-payment notifications.
type OnDunning interface {
	Subscriber
	OnDunning(ctx context.Context, dunning Dunning) error
}
