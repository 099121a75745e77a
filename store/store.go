// Package store defines the unified storage interface for all Reckon
// entities. Implementations live in the subpackages (memory, postgres,
// sqlite, mongo).
package store

import (
	"context"

	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/meter"
	"github.com/xraph/reckon/subscription"
)

// InvoiceRef is the projection retained from invoice events so later charge
// events can be resolved to the subscription their invoice belongs to.
type InvoiceRef struct {
	InvoiceID      string `json:"invoice_id"`
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
}

// Store is the unified storage interface. Instead of embedding the
// per-component interfaces, all methods are declared explicitly to avoid
// naming conflicts; Store satisfies credit.Store and meter.Store.
//
// AdmitEvent is the single synchronization point converting at-least-once
// delivery into exactly-once effects: it must behave as an atomic
// test-and-set on the event id under concurrent deliveries.
type Store interface {
	// Event admission. AdmitEvent records intent to process the event.
	// It returns (record, true) when this caller won admission — either no
	// record existed or a prior attempt terminated as failed and is being
	// retried. It returns (prior, false) when the event is already admitted;
	// the caller must skip all downstream effects.
	AdmitEvent(ctx context.Context, record *event.Record) (*event.Record, bool, error)
	// CommitEvent finalizes the admitted event with its terminal outcome.
	CommitEvent(ctx context.Context, eventID string, outcome event.Outcome, procErr string) error
	// GetEvent returns the stored record for an event id.
	GetEvent(ctx context.Context, eventID string) (*event.Record, error)

	// Subscription methods. Provider id is the inbound lookup key.
	CreateSubscription(ctx context.Context, sub *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, providerID string) (*subscription.Subscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error

	// Invoice reference methods.
	PutInvoiceRef(ctx context.Context, ref *InvoiceRef) error
	GetInvoiceRef(ctx context.Context, invoiceID string) (*InvoiceRef, error)

	// Credit ledger methods (credit.Store).
	AppendLedgerEntry(ctx context.Context, entry *credit.LedgerEntry) error
	FindLedgerEntry(ctx context.Context, customerID string, reason credit.Reason, externalRef string) (*credit.LedgerEntry, error)
	LedgerBalance(ctx context.Context, customerID string) (int64, error)
	ListLedgerEntries(ctx context.Context, customerID string, limit, offset int) ([]*credit.LedgerEntry, error)

	// Usage metering methods (meter.Store).
	InsertUsageRecord(ctx context.Context, record *meter.UsageRecord) (bool, error)
	SumUsage(ctx context.Context, subscriptionItemID, bucket string) (int64, error)
	MarkPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) error
	IsPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) (bool, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Interface satisfaction is checked here once rather than in every
// implementation.
var (
	_ credit.Store = (Store)(nil)
	_ meter.Store  = (Store)(nil)
)
