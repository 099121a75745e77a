package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated    = "subscription.created"
	ActionSubscriptionActivated  = "subscription.activated"
	ActionSubscriptionPastDue    = "subscription.past_due"
	ActionSubscriptionCanceled   = "subscription.canceled"
	ActionSubscriptionTransition = "subscription.transition"

	// Credit ledger actions
	ActionCreditGranted = "credit.granted"
	ActionCreditDebited = "credit.debited"

	// Usage actions
	ActionUsageBilled = "usage.billed"

	// Dunning actions
	ActionDunningStarted = "dunning.started"

	// Webhook actions
	ActionEventProcessed = "event.processed"
	ActionEventSkipped   = "event.skipped"
	ActionEventFailed    = "event.failed"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceLedger       = "ledger"
	ResourceUsage        = "usage"
	ResourceEvent        = "event"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryBilling      = "billing"
	CategoryUsage        = "usage"
	CategoryIntegration  = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
