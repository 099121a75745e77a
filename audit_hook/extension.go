// Package audithook bridges Reckon lifecycle notifications to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/notify"
	"github.com/xraph/reckon/subscription"
)

// Compile-time interface checks.
var (
	_ notify.Subscriber                 = (*Extension)(nil)
	_ notify.OnSubscriptionStateChanged = (*Extension)(nil)
	_ notify.OnCreditBalanceChanged     = (*Extension)(nil)
	_ notify.OnUsageBilled              = (*Extension)(nil)
	_ notify.OnDunning                  = (*Extension)(nil)
	_ notify.OnEventProcessed           = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Reckon lifecycle notifications to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements notify.Subscriber.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionStateChanged implements notify.OnSubscriptionStateChanged.
func (e *Extension) OnSubscriptionStateChanged(ctx context.Context, change notify.SubscriptionStateChange) error {
	return e.record(ctx, transitionAction(change), transitionSeverity(change), OutcomeSuccess,
		ResourceSubscription, change.SubscriptionID, CategorySubscription, nil,
		"customer_id", change.CustomerID,
		"from", string(change.From),
		"to", string(change.To),
	)
}

func transitionAction(change notify.SubscriptionStateChange) string {
	switch change.To {
	case subscription.StateActive:
		if change.From == "" {
			return ActionSubscriptionCreated
		}
		return ActionSubscriptionActivated
	case subscription.StatePastDue:
		return ActionSubscriptionPastDue
	case subscription.StateCanceled:
		return ActionSubscriptionCanceled
	default:
		return ActionSubscriptionTransition
	}
}

func transitionSeverity(change notify.SubscriptionStateChange) string {
	if change.To == subscription.StatePastDue {
		return SeverityWarning
	}
	return SeverityInfo
}

// ──────────────────────────────────────────────────
// Credit ledger hooks
// ──────────────────────────────────────────────────

// OnCreditBalanceChanged implements notify.OnCreditBalanceChanged.
func (e *Extension) OnCreditBalanceChanged(ctx context.Context, change notify.BalanceChange) error {
	action := ActionCreditGranted
	if change.Delta < 0 {
		action = ActionCreditDebited
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceLedger, change.ExternalRef, CategoryBilling, nil,
		"customer_id", change.CustomerID,
		"delta", change.Delta,
		"balance", change.Balance,
		"reason", string(change.Reason),
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageBilled implements notify.OnUsageBilled.
func (e *Extension) OnUsageBilled(ctx context.Context, billed notify.UsageBilled) error {
	return e.record(ctx, ActionUsageBilled, SeverityInfo, OutcomeSuccess,
		ResourceUsage, billed.SubscriptionItemID, CategoryUsage, nil,
		"bucket", billed.Bucket,
		"quantity", billed.Quantity,
	)
}

// ──────────────────────────────────────────────────
// Dunning hooks
// ──────────────────────────────────────────────────

// OnDunning implements notify.OnDunning.
func (e *Extension) OnDunning(ctx context.Context, d notify.Dunning) error {
	return e.record(ctx, ActionDunningStarted, SeverityWarning, OutcomeFailure,
		ResourceSubscription, d.SubscriptionID, CategoryBilling, nil,
		"customer_id", d.CustomerID,
	)
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnEventProcessed implements notify.OnEventProcessed.
func (e *Extension) OnEventProcessed(ctx context.Context, processed notify.EventProcessed) error {
	action := ActionEventProcessed
	outcome := OutcomeSuccess
	severity := SeverityInfo
	switch processed.Outcome {
	case event.OutcomeSkipped:
		action = ActionEventSkipped
	case event.OutcomeFailed:
		action = ActionEventFailed
		outcome = OutcomeFailure
		severity = SeverityError
	}
	return e.record(ctx, action, severity, outcome,
		ResourceEvent, processed.EventID, CategoryIntegration, nil,
		"type", string(processed.Type),
		"outcome", string(processed.Outcome),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
