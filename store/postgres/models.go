package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/meter"
	"github.com/xraph/reckon/store"
	"github.com/xraph/reckon/subscription"
	"github.com/xraph/reckon/types"
)

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:reckon_events"`

	EventID     string          `grove:"event_id,pk"`
	Type        string          `grove:"type"`
	Payload     json.RawMessage `grove:"payload,type:jsonb"`
	ReceivedAt  time.Time       `grove:"received_at"`
	Outcome     string          `grove:"outcome"`
	Error       string          `grove:"error"`
	ProcessedAt *time.Time      `grove:"processed_at"`
}

func toEventModel(r *event.Record) *eventModel {
	return &eventModel{
		EventID:     r.EventID,
		Type:        string(r.Type),
		Payload:     r.Payload,
		ReceivedAt:  r.ReceivedAt,
		Outcome:     string(r.Outcome),
		Error:       r.Error,
		ProcessedAt: r.ProcessedAt,
	}
}

func fromEventModel(m *eventModel) *event.Record {
	return &event.Record{
		EventID:     m.EventID,
		Type:        event.Type(m.Type),
		Payload:     m.Payload,
		ReceivedAt:  m.ReceivedAt,
		Outcome:     event.Outcome(m.Outcome),
		Error:       m.Error,
		ProcessedAt: m.ProcessedAt,
	}
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:reckon_subscriptions"`

	ID                 string     `grove:"id,pk"`
	ProviderID         string     `grove:"provider_id"`
	CustomerID         string     `grove:"customer_id"`
	PlanID             string     `grove:"plan_id"`
	MonthlyCredits     int64      `grove:"monthly_credits"`
	State              string     `grove:"state"`
	CurrentPeriodStart time.Time  `grove:"current_period_start"`
	CurrentPeriodEnd   time.Time  `grove:"current_period_end"`
	CancelAtPeriodEnd  bool       `grove:"cancel_at_period_end"`
	TrialEnd           *time.Time `grove:"trial_end"`
	CanceledAt         *time.Time `grove:"canceled_at"`
	LastAppliedVersion int64      `grove:"last_applied_version"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                 s.ID.String(),
		ProviderID:         s.ProviderID,
		CustomerID:         s.CustomerID,
		PlanID:             s.PlanID,
		MonthlyCredits:     s.MonthlyCredits,
		State:              string(s.State),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		TrialEnd:           s.TrialEnd,
		CanceledAt:         s.CanceledAt,
		LastAppliedVersion: s.LastAppliedVersion,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 subID,
		ProviderID:         m.ProviderID,
		CustomerID:         m.CustomerID,
		PlanID:             m.PlanID,
		MonthlyCredits:     m.MonthlyCredits,
		State:              subscription.State(m.State),
		CurrentPeriodStart: m.CurrentPeriodStart,
		CurrentPeriodEnd:   m.CurrentPeriodEnd,
		CancelAtPeriodEnd:  m.CancelAtPeriodEnd,
		TrialEnd:           m.TrialEnd,
		CanceledAt:         m.CanceledAt,
		LastAppliedVersion: m.LastAppliedVersion,
	}, nil
}

// ==================== Invoice reference models ====================

type invoiceRefModel struct {
	grove.BaseModel `grove:"table:reckon_invoice_refs"`

	InvoiceID      string `grove:"invoice_id,pk"`
	SubscriptionID string `grove:"subscription_id"`
	CustomerID     string `grove:"customer_id"`
}

func toInvoiceRefModel(r *store.InvoiceRef) *invoiceRefModel {
	return &invoiceRefModel{
		InvoiceID:      r.InvoiceID,
		SubscriptionID: r.SubscriptionID,
		CustomerID:     r.CustomerID,
	}
}

func fromInvoiceRefModel(m *invoiceRefModel) *store.InvoiceRef {
	return &store.InvoiceRef{
		InvoiceID:      m.InvoiceID,
		SubscriptionID: m.SubscriptionID,
		CustomerID:     m.CustomerID,
	}
}

// ==================== Ledger entry models ====================

type ledgerEntryModel struct {
	grove.BaseModel `grove:"table:reckon_ledger_entries"`

	ID          string    `grove:"id,pk"`
	CustomerID  string    `grove:"customer_id"`
	Delta       int64     `grove:"delta"`
	Reason      string    `grove:"reason"`
	ExternalRef string    `grove:"external_ref"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toLedgerEntryModel(e *credit.LedgerEntry) *ledgerEntryModel {
	return &ledgerEntryModel{
		ID:          e.ID.String(),
		CustomerID:  e.CustomerID,
		Delta:       e.Delta,
		Reason:      string(e.Reason),
		ExternalRef: e.ExternalRef,
		CreatedAt:   e.CreatedAt,
	}
}

func fromLedgerEntryModel(m *ledgerEntryModel) (*credit.LedgerEntry, error) {
	entryID, err := id.ParseLedgerEntryID(m.ID)
	if err != nil {
		return nil, err
	}

	return &credit.LedgerEntry{
		ID:          entryID,
		CustomerID:  m.CustomerID,
		Delta:       m.Delta,
		Reason:      credit.Reason(m.Reason),
		ExternalRef: m.ExternalRef,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// ==================== Usage record models ====================

type usageRecordModel struct {
	grove.BaseModel `grove:"table:reckon_usage_records"`

	ID                 string    `grove:"id,pk"`
	SubscriptionItemID string    `grove:"subscription_item_id"`
	Quantity           int64     `grove:"quantity"`
	Timestamp          time.Time `grove:"timestamp"`
	PeriodBucket       string    `grove:"period_bucket"`
	IdempotencyToken   string    `grove:"idempotency_token"`
	CreatedAt          time.Time `grove:"created_at"`
}

func toUsageRecordModel(r *meter.UsageRecord) *usageRecordModel {
	return &usageRecordModel{
		ID:                 r.ID.String(),
		SubscriptionItemID: r.SubscriptionItemID,
		Quantity:           r.Quantity,
		Timestamp:          r.Timestamp,
		PeriodBucket:       r.PeriodBucket,
		IdempotencyToken:   r.IdempotencyToken,
		CreatedAt:          r.CreatedAt,
	}
}

// ==================== Closed period models ====================

type closedPeriodModel struct {
	grove.BaseModel `grove:"table:reckon_closed_periods"`

	SubscriptionItemID string    `grove:"subscription_item_id,pk"`
	PeriodBucket       string    `grove:"period_bucket,pk"`
	ClosedAt           time.Time `grove:"closed_at"`
}
