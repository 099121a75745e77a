package subscription

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
)

// Machine errors.
var (
	ErrNotFound  = errors.New("subscription: not found")
	ErrUnhandled = errors.New("subscription: event type not handled by the state machine")
)

// Transition is the result of applying one event to a subscription.
//
// Stale means the event's version was not strictly greater than the
// subscription's last applied version: nothing was mutated and the event is
// acknowledged as a successful no-op. A stale event never overwrites newer
// state.
type Transition struct {
	Subscription *Subscription
	From         State
	To           State
	Created      bool
	Stale        bool
	// Dunning marks a transition caused by a failed recurring payment.
	Dunning bool
}

// Changed reports whether the lifecycle state actually moved.
func (t *Transition) Changed() bool { return !t.Stale && t.From != t.To }

// Machine applies provider events to subscriptions. It never touches
// storage; callers serialize per subscription key, persist the returned
// subscription, and emit notifications from the transition.
type Machine struct {
	now func() time.Time
}

// NewMachine creates a state machine. The clock override is for tests.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{now: now}
}

// Apply drives one event through the transition table. current is nil only
// for subscription.created; every other event type requires an existing
// subscription.
func (m *Machine) Apply(current *Subscription, ev *event.Event) (*Transition, error) {
	if ev.Type == event.TypeSubscriptionCreated {
		return m.create(current, ev)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s for unknown subscription", ErrNotFound, ev.Type)
	}
	if stale := m.gate(current, ev); stale != nil {
		return stale, nil
	}

	switch ev.Type {
	case event.TypeSubscriptionUpdated:
		return m.update(current, ev)
	case event.TypeSubscriptionDeleted:
		return m.cancel(current, ev)
	case event.TypeInvoicePaid:
		return m.invoicePaid(current, ev)
	case event.TypeInvoicePaymentFailed:
		return m.paymentFailed(current, ev)
	case event.TypeChargeFailed:
		return m.chargeFailed(current, ev)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandled, ev.Type)
	}
}

// gate enforces the forward-only version rule. A non-nil return is the
// stale no-op transition to hand back.
func (m *Machine) gate(current *Subscription, ev *event.Event) *Transition {
	if ev.Version <= current.LastAppliedVersion {
		return &Transition{
			Subscription: current,
			From:         current.State,
			To:           current.State,
			Stale:        true,
		}
	}
	return nil
}

func (m *Machine) create(current *Subscription, ev *event.Event) (*Transition, error) {
	data, err := event.DecodeSubscription(ev)
	if err != nil {
		return nil, err
	}

	if current != nil {
		// Redelivered creation for a subscription we already track:
		// admission dedup normally catches this, but a provider can also
		// emit distinct creation events after plan migrations. Treat it
		// as an update-or-stale rather than failing.
		if stale := m.gate(current, ev); stale != nil {
			return stale, nil
		}
		return m.applyPayload(current, ev, data), nil
	}

	now := m.now().UTC()
	sub := &Subscription{
		ID:         id.NewSubscriptionID(),
		ProviderID: data.ID,
		CustomerID: data.CustomerID,
		State:      initialState(data, now),
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	applyPayloadFields(sub, data)
	sub.LastAppliedVersion = ev.Version

	return &Transition{
		Subscription: sub,
		From:         "",
		To:           sub.State,
		Created:      true,
	}, nil
}

// initialState picks the state a new subscription starts in: trialing when a
// trial period is present, otherwise the provider status, defaulting to
// incomplete.
func initialState(data *event.SubscriptionData, now time.Time) State {
	if data.HasTrial(now) {
		return StateTrialing
	}
	return StateFromStatus(data.Status)
}

func (m *Machine) update(current *Subscription, ev *event.Event) (*Transition, error) {
	if current.State.Terminal() {
		// Canceled is terminal: updates after cancellation are acknowledged
		// without effect and without advancing the version.
		return &Transition{Subscription: current, From: current.State, To: current.State, Stale: true}, nil
	}
	data, err := event.DecodeSubscription(ev)
	if err != nil {
		return nil, err
	}
	return m.applyPayload(current, ev, data), nil
}

// applyPayload moves the subscription to the state carried in the payload and
// refreshes period bounds and flags.
func (m *Machine) applyPayload(current *Subscription, ev *event.Event, data *event.SubscriptionData) *Transition {
	from := current.State
	applyPayloadFields(current, data)
	current.State = StateFromStatus(data.Status)
	current.LastAppliedVersion = ev.Version
	current.Touch()

	return &Transition{Subscription: current, From: from, To: current.State}
}

func applyPayloadFields(sub *Subscription, data *event.SubscriptionData) {
	sub.CurrentPeriodStart = data.PeriodStart()
	sub.CurrentPeriodEnd = data.PeriodEnd()
	sub.CancelAtPeriodEnd = data.CancelAtPeriodEnd
	if data.TrialEnd > 0 {
		t := time.Unix(data.TrialEnd, 0).UTC()
		sub.TrialEnd = &t
	}
	if data.Plan != nil {
		sub.PlanID = data.Plan.ID
		sub.MonthlyCredits = data.Plan.MonthlyCredits
	}
}

func (m *Machine) cancel(current *Subscription, ev *event.Event) (*Transition, error) {
	from := current.State
	if from == StateCanceled {
		// Already canceled; advance the version so later stale deliveries
		// stay stale, but report no change.
		current.LastAppliedVersion = ev.Version
		return &Transition{Subscription: current, From: from, To: from}, nil
	}

	now := m.now().UTC()
	current.State = StateCanceled
	current.CanceledAt = &now
	// Freeze the period at cancellation: bounds stop tracking the provider.
	current.LastAppliedVersion = ev.Version
	current.Touch()

	return &Transition{Subscription: current, From: from, To: StateCanceled}, nil
}

func (m *Machine) invoicePaid(current *Subscription, ev *event.Event) (*Transition, error) {
	from := current.State
	if from == StatePastDue || from == StateActive {
		current.State = StateActive
	}
	current.LastAppliedVersion = ev.Version
	current.Touch()

	return &Transition{Subscription: current, From: from, To: current.State}, nil
}

func (m *Machine) paymentFailed(current *Subscription, ev *event.Event) (*Transition, error) {
	from := current.State
	dunning := false
	if from == StateActive || from == StateTrialing {
		current.State = StatePastDue
		dunning = true
	}
	current.LastAppliedVersion = ev.Version
	current.Touch()

	return &Transition{Subscription: current, From: from, To: current.State, Dunning: dunning}, nil
}

// chargeFailed handles a failed charge already resolved by the caller to
// this subscription's invoice. Only active subscriptions move to past_due.
func (m *Machine) chargeFailed(current *Subscription, ev *event.Event) (*Transition, error) {
	from := current.State
	if from == StateActive {
		current.State = StatePastDue
	}
	current.LastAppliedVersion = ev.Version
	current.Touch()

	return &Transition{Subscription: current, From: from, To: current.State}, nil
}
