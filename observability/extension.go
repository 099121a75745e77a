// Package observability provides a metrics subscriber for Reckon that
// records lifecycle event counts via an injected MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/notify"
	"github.com/xraph/reckon/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ notify.Subscriber                 = (*MetricsExtension)(nil)
	_ notify.OnSubscriptionStateChanged = (*MetricsExtension)(nil)
	_ notify.OnCreditBalanceChanged     = (*MetricsExtension)(nil)
	_ notify.OnUsageBilled              = (*MetricsExtension)(nil)
	_ notify.OnDunning                  = (*MetricsExtension)(nil)
	_ notify.OnEventProcessed           = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Reckon subscriber to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Subscription metrics
	SubscriptionCreated   Counter
	SubscriptionActivated Counter
	SubscriptionPastDue   Counter
	SubscriptionCanceled  Counter

	// Ledger metrics
	CreditsGranted Counter
	CreditsDebited Counter
	GrantAmount    Histogram
	DebitAmount    Histogram

	// Usage metrics
	PeriodsClosed  Counter
	BilledQuantity Histogram

	// Dunning metrics
	DunningStarted Counter

	// Webhook metrics
	EventsProcessed Counter
	EventsSkipped   Counter
	EventsFailed    Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Subscription metrics
		SubscriptionCreated:   factory.Counter("reckon.subscription.created"),
		SubscriptionActivated: factory.Counter("reckon.subscription.activated"),
		SubscriptionPastDue:   factory.Counter("reckon.subscription.past_due"),
		SubscriptionCanceled:  factory.Counter("reckon.subscription.canceled"),

		// Ledger metrics
		CreditsGranted: factory.Counter("reckon.credit.granted"),
		CreditsDebited: factory.Counter("reckon.credit.debited"),
		GrantAmount:    factory.Histogram("reckon.credit.grant_amount"),
		DebitAmount:    factory.Histogram("reckon.credit.debit_amount"),

		// Usage metrics
		PeriodsClosed:  factory.Counter("reckon.usage.periods_closed"),
		BilledQuantity: factory.Histogram("reckon.usage.billed_quantity"),

		// Dunning metrics
		DunningStarted: factory.Counter("reckon.dunning.started"),

		// Webhook metrics
		EventsProcessed: factory.Counter("reckon.event.processed"),
		EventsSkipped:   factory.Counter("reckon.event.skipped"),
		EventsFailed:    factory.Counter("reckon.event.failed"),
	}
}

// Name implements notify.Subscriber.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionStateChanged implements notify.OnSubscriptionStateChanged.
func (m *MetricsExtension) OnSubscriptionStateChanged(_ context.Context, change notify.SubscriptionStateChange) error {
	switch change.To {
	case subscription.StateActive:
		if change.From == "" {
			m.SubscriptionCreated.Inc()
		} else {
			m.SubscriptionActivated.Inc()
		}
	case subscription.StatePastDue:
		m.SubscriptionPastDue.Inc()
	case subscription.StateCanceled:
		m.SubscriptionCanceled.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Credit ledger hooks
// ──────────────────────────────────────────────────

// OnCreditBalanceChanged implements notify.OnCreditBalanceChanged.
func (m *MetricsExtension) OnCreditBalanceChanged(_ context.Context, change notify.BalanceChange) error {
	if change.Delta >= 0 {
		m.CreditsGranted.Inc()
		m.GrantAmount.Observe(float64(change.Delta))
	} else {
		m.CreditsDebited.Inc()
		m.DebitAmount.Observe(float64(-change.Delta))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageBilled implements notify.OnUsageBilled.
func (m *MetricsExtension) OnUsageBilled(_ context.Context, billed notify.UsageBilled) error {
	m.PeriodsClosed.Inc()
	m.BilledQuantity.Observe(float64(billed.Quantity))
	return nil
}

// ──────────────────────────────────────────────────
// Dunning hooks
// ──────────────────────────────────────────────────

// OnDunning implements notify.OnDunning.
func (m *MetricsExtension) OnDunning(_ context.Context, _ notify.Dunning) error {
	m.DunningStarted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnEventProcessed implements notify.OnEventProcessed.
func (m *MetricsExtension) OnEventProcessed(_ context.Context, processed notify.EventProcessed) error {
	switch processed.Outcome {
	case event.OutcomeSkipped:
		m.EventsSkipped.Inc()
	case event.OutcomeFailed:
		m.EventsFailed.Inc()
	default:
		m.EventsProcessed.Inc()
	}
	return nil
}
