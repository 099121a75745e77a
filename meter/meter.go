// Package meter aggregates metered usage reports into billing-period
// buckets and settles each bucket with exactly one credit-ledger debit at
// period close.
//
// Period close is triggered externally, by an invoice-creation event — the
// meter runs no timers. The close debit is keyed (usage_debit,
// bucket/itemID), so duplicate close triggers collapse inside the ledger's
// idempotency rather than double-billing.
package meter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/id"
)

// Metering errors.
var (
	ErrInvalidQuantity = errors.New("meter: quantity must be positive")
	ErrOutsidePeriod   = errors.New("meter: timestamp outside the billing period")
	ErrPeriodClosed    = errors.New("meter: billing period already closed")
)

// Status is the outcome of a usage report.
type Status string

const (
	// StatusAccepted: the report was recorded and counts toward the bucket.
	StatusAccepted Status = "accepted"
	// StatusDuplicate: the (itemID, token) pair was already recorded.
	StatusDuplicate Status = "duplicate"
)

// Period is one billing period, taken from the subscription's current
// period bounds. The half-open interval [Start, End) covers reports.
type Period struct {
	Start time.Time
	End   time.Time
}

// Bucket is the period's aggregation key.
func (p Period) Bucket() string {
	return fmt.Sprintf("%d-%d", p.Start.Unix(), p.End.Unix())
}

// Contains reports whether ts falls inside the period.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.Start) && ts.Before(p.End)
}

// UsageRecord is one accepted usage report.
type UsageRecord struct {
	ID                 id.UsageRecordID `json:"id"`
	SubscriptionItemID string           `json:"subscription_item_id"`
	Quantity           int64            `json:"quantity"`
	Timestamp          time.Time        `json:"timestamp"`
	PeriodBucket       string           `json:"period_bucket"`
	IdempotencyToken   string           `json:"idempotency_token"`
	CreatedAt          time.Time        `json:"created_at"`
}

// CloseResult is the outcome of a period close.
type CloseResult struct {
	Bucket   string
	Quantity int64
	// Debit is nil when the bucket had no usage to bill.
	Debit *credit.Result
}

// Store is the persistence surface the meter needs. The unified store
// satisfies it.
type Store interface {
	// InsertUsageRecord persists a record unless its (item, token) pair
	// already exists. Returns false on the duplicate.
	InsertUsageRecord(ctx context.Context, record *UsageRecord) (bool, error)
	// SumUsage totals accepted quantities for an item's bucket.
	SumUsage(ctx context.Context, subscriptionItemID, bucket string) (int64, error)
	// MarkPeriodClosed records that an item's bucket has been settled.
	MarkPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) error
	// IsPeriodClosed reports whether an item's bucket has been settled.
	IsPeriodClosed(ctx context.Context, subscriptionItemID, bucket string) (bool, error)
}

// Meter accepts usage reports and settles period buckets against the
// credit ledger.
type Meter struct {
	store  Store
	ledger *credit.Ledger
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	itemLocks map[string]*sync.Mutex
}

// Option configures a Meter.
type Option func(*Meter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Meter) { m.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Meter) { m.now = now }
}

// New creates a Meter over the given store and ledger.
func New(store Store, ledger *credit.Ledger, opts ...Option) *Meter {
	m := &Meter{
		store:     store,
		ledger:    ledger,
		logger:    slog.Default(),
		now:       time.Now,
		itemLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock serializes reports and period closes for one subscription item. The
// closed check and the record insert (and, on close, the sum and the mark)
// must be one atomic step: otherwise a report can pass the closed check
// while a close is summing, land after the sum, and never be billed.
func (m *Meter) lock(itemID string) func() {
	m.mu.Lock()
	l, ok := m.itemLocks[itemID]
	if !ok {
		l = &sync.Mutex{}
		m.itemLocks[itemID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Report records one usage quantity against the bucket covering ts. A
// report with an already-seen (itemID, token) pair is acknowledged as
// Duplicate without changing the aggregate. Reports into a settled bucket
// fail with ErrPeriodClosed.
func (m *Meter) Report(ctx context.Context, itemID string, quantity int64, ts time.Time, token string, period Period) (Status, error) {
	if itemID == "" {
		return "", fmt.Errorf("meter: subscription item id is required")
	}
	if quantity <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if token == "" {
		return "", fmt.Errorf("meter: idempotency token is required")
	}
	if !period.Contains(ts) {
		return "", fmt.Errorf("%w: %s not in [%s, %s)", ErrOutsidePeriod,
			ts.Format(time.RFC3339), period.Start.Format(time.RFC3339), period.End.Format(time.RFC3339))
	}

	unlock := m.lock(itemID)
	defer unlock()

	bucket := period.Bucket()
	closed, err := m.store.IsPeriodClosed(ctx, itemID, bucket)
	if err != nil {
		return "", fmt.Errorf("meter: check period: %w", err)
	}
	if closed {
		return "", fmt.Errorf("%w: %s/%s", ErrPeriodClosed, itemID, bucket)
	}

	record := &UsageRecord{
		ID:                 id.NewUsageRecordID(),
		SubscriptionItemID: itemID,
		Quantity:           quantity,
		Timestamp:          ts.UTC(),
		PeriodBucket:       bucket,
		IdempotencyToken:   token,
		CreatedAt:          m.now().UTC(),
	}
	inserted, err := m.store.InsertUsageRecord(ctx, record)
	if err != nil {
		return "", fmt.Errorf("meter: insert usage record: %w", err)
	}
	if !inserted {
		return StatusDuplicate, nil
	}
	return StatusAccepted, nil
}

// ClosePeriod settles an item's bucket: it totals the accepted quantity and
// issues one ledger debit against the customer. Calling it again for the
// same bucket re-issues the same idempotency key, which the ledger collapses
// onto the original entry — a duplicate close trigger bills nothing.
func (m *Meter) ClosePeriod(ctx context.Context, customerID, itemID string, period Period) (*CloseResult, error) {
	if customerID == "" {
		return nil, fmt.Errorf("meter: customer id is required")
	}
	if itemID == "" {
		return nil, fmt.Errorf("meter: subscription item id is required")
	}

	unlock := m.lock(itemID)
	defer unlock()

	bucket := period.Bucket()
	total, err := m.store.SumUsage(ctx, itemID, bucket)
	if err != nil {
		return nil, fmt.Errorf("meter: sum usage: %w", err)
	}

	result := &CloseResult{Bucket: bucket, Quantity: total}
	if total > 0 {
		debit, err := m.ledger.Debit(ctx, customerID, total, credit.ReasonUsageDebit, bucket+"/"+itemID)
		if err != nil {
			return nil, fmt.Errorf("meter: settle bucket %s/%s: %w", bucket, itemID, err)
		}
		result.Debit = debit
	}

	if err := m.store.MarkPeriodClosed(ctx, itemID, bucket); err != nil {
		return nil, fmt.Errorf("meter: mark period closed: %w", err)
	}

	m.logger.Debug("billing period closed",
		"customer_id", customerID,
		"subscription_item_id", itemID,
		"bucket", bucket,
		"quantity", total)

	return result, nil
}
