package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/reckon/types"
)

// Typed payload variants. Each event type carries one of these as its data
// object. Unknown fields are ignored; missing required fields fail the
// decode, which rejects the event before admission rather than deep in the
// state machine.

// SubscriptionData is the payload for subscription.* events.
type SubscriptionData struct {
	ID                 string    `json:"id"`
	CustomerID         string    `json:"customer"`
	Status             string    `json:"status"`
	CurrentPeriodStart int64     `json:"current_period_start"`
	CurrentPeriodEnd   int64     `json:"current_period_end"`
	CancelAtPeriodEnd  bool      `json:"cancel_at_period_end"`
	TrialEnd           int64     `json:"trial_end,omitempty"`
	Plan               *PlanData `json:"plan,omitempty"`
}

// PlanData describes the plan attached to a subscription payload. Credit
// grants ride along as plan metadata, the way the provider exposes product
// metadata.
type PlanData struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Amount         types.Money `json:"amount"`
	Interval       string      `json:"interval"`
	InitialCredits int64       `json:"initial_credits"`
	MonthlyCredits int64       `json:"monthly_credits"`
}

// PeriodStart returns the period start as a time.
func (d *SubscriptionData) PeriodStart() time.Time { return time.Unix(d.CurrentPeriodStart, 0).UTC() }

// PeriodEnd returns the period end as a time.
func (d *SubscriptionData) PeriodEnd() time.Time { return time.Unix(d.CurrentPeriodEnd, 0).UTC() }

// HasTrial reports whether the payload carries a trial period ending in the
// future of the given reference time.
func (d *SubscriptionData) HasTrial(now time.Time) bool {
	return d.TrialEnd > 0 && time.Unix(d.TrialEnd, 0).After(now)
}

// InvoiceData is the payload for invoice.* events.
type InvoiceData struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer"`
	SubscriptionID string      `json:"subscription,omitempty"`
	AmountDue      types.Money `json:"amount_due"`
	AmountPaid     types.Money `json:"amount_paid"`
	PeriodStart    int64       `json:"period_start"`
	PeriodEnd      int64       `json:"period_end"`
	Lines          []LineData  `json:"lines,omitempty"`
}

// LineData is one invoice line. Metered lines reference the subscription
// item whose usage bucket the invoice closes.
type LineData struct {
	SubscriptionItemID string `json:"subscription_item"`
	PeriodStart        int64  `json:"period_start"`
	PeriodEnd          int64  `json:"period_end"`
	Metered            bool   `json:"metered"`
}

// ForSubscription reports whether the invoice belongs to a subscription.
// Invoices without one (one-off charges) are ignored by the state machine.
func (d *InvoiceData) ForSubscription() bool { return d.SubscriptionID != "" }

// ChargeData is the payload for charge.* events.
type ChargeData struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer"`
	InvoiceID      string      `json:"invoice,omitempty"`
	Amount         types.Money `json:"amount"`
	AmountRefunded types.Money `json:"amount_refunded"`
	FailureCode    string      `json:"failure_code,omitempty"`
	FailureMessage string      `json:"failure_message,omitempty"`
}

// LinkedToInvoice reports whether the charge is tied to a subscription
// invoice. Only linked charge failures affect subscription state.
func (d *ChargeData) LinkedToInvoice() bool { return d.InvoiceID != "" }

// DecodeSubscription decodes and validates a subscription.* payload.
func DecodeSubscription(e *Event) (*SubscriptionData, error) {
	var d SubscriptionData
	if err := json.Unmarshal(e.Object, &d); err != nil {
		return nil, fmt.Errorf("event: decode %s payload: %w", e.Type, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("event: %s %s: %w", e.Type, e.ID, errRequired("subscription id"))
	}
	if d.CustomerID == "" {
		return nil, fmt.Errorf("event: %s %s: %w", e.Type, e.ID, errRequired("customer id"))
	}
	return &d, nil
}

// DecodeInvoice decodes and validates an invoice.* payload.
func DecodeInvoice(e *Event) (*InvoiceData, error) {
	var d InvoiceData
	if err := json.Unmarshal(e.Object, &d); err != nil {
		return nil, fmt.Errorf("event: decode %s payload: %w", e.Type, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("event: %s %s: %w", e.Type, e.ID, errRequired("invoice id"))
	}
	if d.CustomerID == "" {
		return nil, fmt.Errorf("event: %s %s: %w", e.Type, e.ID, errRequired("customer id"))
	}
	return &d, nil
}

// DecodeCharge decodes and validates a charge.* payload.
func DecodeCharge(e *Event) (*ChargeData, error) {
	var d ChargeData
	if err := json.Unmarshal(e.Object, &d); err != nil {
		return nil, fmt.Errorf("event: decode %s payload: %w", e.Type, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("event: %s %s: %w", e.Type, e.ID, errRequired("charge id"))
	}
	if d.CustomerID == "" {
		return nil, fmt.Errorf("event: %s %s: %w", e.Type, e.ID, errRequired("customer id"))
	}
	return &d, nil
}

type requiredError string

func (e requiredError) Error() string { return "missing required field: " + string(e) }

func errRequired(field string) error { return requiredError(field) }
