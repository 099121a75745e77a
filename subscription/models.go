// Package subscription holds the subscription lifecycle model and the state
// machine that drives it from provider events. The machine is pure: it takes
// the current subscription and one event and returns the transition to
// persist. Serialization per subscription key and persistence are the
// caller's job.
package subscription

import (
	"time"

	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/types"
)

// State is the subscription lifecycle state.
type State string

const (
	StateIncomplete State = "incomplete"
	StateTrialing   State = "trialing"
	StateActive     State = "active"
	StatePastDue    State = "past_due"
	StateCanceled   State = "canceled"
	StateUnpaid     State = "unpaid"
)

// Terminal reports whether the state admits no further transitions.
// Canceled subscriptions are retained, never deleted.
func (s State) Terminal() bool { return s == StateCanceled }

// Valid reports whether s is a recognized lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateIncomplete, StateTrialing, StateActive, StatePastDue, StateCanceled, StateUnpaid:
		return true
	}
	return false
}

// StateFromStatus maps a provider status string onto a lifecycle state.
// Unrecognized statuses land in incomplete rather than failing the event.
func StateFromStatus(status string) State {
	if s := State(status); s.Valid() {
		return s
	}
	return StateIncomplete
}

// Subscription is the consistent view of one provider subscription.
//
// ProviderID is the provider's own subscription id and the lookup key for
// inbound events. LastAppliedVersion only moves forward: events carrying an
// older or equal version are stale no-ops, which is what makes out-of-order
// delivery safe.
type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID `json:"id"`
	ProviderID         string            `json:"provider_id"`
	CustomerID         string            `json:"customer_id"`
	PlanID             string            `json:"plan_id,omitempty"`
	// MonthlyCredits is the recurring credit grant carried by the plan
	// metadata, applied on each paid invoice.
	MonthlyCredits     int64             `json:"monthly_credits,omitempty"`
	State              State             `json:"state"`
	CurrentPeriodStart time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	TrialEnd           *time.Time        `json:"trial_end,omitempty"`
	CanceledAt         *time.Time        `json:"canceled_at,omitempty"`
	LastAppliedVersion int64             `json:"last_applied_version"`
}
