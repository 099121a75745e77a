// Package memory provides an in-memory store implementation. Useful for
// development, testing, and single-process setups that can rebuild state by
// replaying events.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/reckon"
	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/meter"
	"github.com/xraph/reckon/store"
	"github.com/xraph/reckon/subscription"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Event records by provider event id
	events map[string]*event.Record

	// Subscriptions, indexed both ways
	subsByID       map[string]*subscription.Subscription
	subsByProvider map[string]*subscription.Subscription

	// Invoice references by provider invoice id
	invoiceRefs map[string]*store.InvoiceRef

	// Ledger entries per customer, in insertion order
	entries map[string][]*credit.LedgerEntry

	// Usage records plus the (item, token) dedup index
	usage      []*meter.UsageRecord
	usageSeen  map[string]bool
	closedBkts map[string]bool
}

func New() *Store {
	return &Store{
		events:         make(map[string]*event.Record),
		subsByID:       make(map[string]*subscription.Subscription),
		subsByProvider: make(map[string]*subscription.Subscription),
		invoiceRefs:    make(map[string]*store.InvoiceRef),
		entries:        make(map[string][]*credit.LedgerEntry),
		usageSeen:      make(map[string]bool),
		closedBkts:     make(map[string]bool),
	}
}

// Event admission

func (s *Store) AdmitEvent(_ context.Context, record *event.Record) (*event.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[record.EventID]
	if !ok {
		s.events[record.EventID] = record
		return record, true, nil
	}
	if existing.Outcome == event.OutcomeFailed {
		// A failed attempt never committed its effects; redelivery retries
		// the whole event.
		s.events[record.EventID] = record
		return record, true, nil
	}
	return existing, false, nil
}

func (s *Store) CommitEvent(_ context.Context, eventID string, outcome event.Outcome, procErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[eventID]
	if !ok {
		return reckon.ErrEventNotFound
	}
	now := time.Now().UTC()
	rec.Outcome = outcome
	rec.Error = procErr
	rec.ProcessedAt = &now
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID string) (*event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.events[eventID]; ok {
		return rec, nil
	}
	return nil, reckon.ErrEventNotFound
}

// Subscription Store implementation

// cloneSub isolates stored rows from caller mutation. A SQL store hands back
// a fresh struct on every read; handing out the stored pointer here would let
// in-place edits reach the store without an UpdateSubscription call.
func cloneSub(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	return &c
}

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subsByProvider[sub.ProviderID]; exists {
		return reckon.ErrSubscriptionExists
	}
	row := cloneSub(sub)
	s.subsByID[sub.ID.String()] = row
	s.subsByProvider[sub.ProviderID] = row
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subsByID[subID.String()]; ok {
		return cloneSub(sub), nil
	}
	return nil, reckon.ErrSubscriptionNotFound
}

func (s *Store) GetSubscriptionByProviderID(_ context.Context, providerID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subsByProvider[providerID]; ok {
		return cloneSub(sub), nil
	}
	return nil, reckon.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptionsByCustomer(_ context.Context, customerID string) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subsByProvider {
		if sub.CustomerID == customerID {
			result = append(result, cloneSub(sub))
		}
	}
	return result, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subsByProvider[sub.ProviderID]; !exists {
		return reckon.ErrSubscriptionNotFound
	}
	row := cloneSub(sub)
	s.subsByID[sub.ID.String()] = row
	s.subsByProvider[sub.ProviderID] = row
	return nil
}

// Invoice references

func (s *Store) PutInvoiceRef(_ context.Context, ref *store.InvoiceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoiceRefs[ref.InvoiceID] = ref
	return nil
}

func (s *Store) GetInvoiceRef(_ context.Context, invoiceID string) (*store.InvoiceRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref, ok := s.invoiceRefs[invoiceID]; ok {
		return ref, nil
	}
	return nil, reckon.ErrNotFound
}

// Credit ledger Store implementation

func (s *Store) AppendLedgerEntry(_ context.Context, entry *credit.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.CustomerID] = append(s.entries[entry.CustomerID], entry)
	return nil
}

func (s *Store) FindLedgerEntry(_ context.Context, customerID string, reason credit.Reason, externalRef string) (*credit.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[customerID] {
		if e.Reason == reason && e.ExternalRef == externalRef {
			return e, nil
		}
	}
	return nil, nil
}

func (s *Store) LedgerBalance(_ context.Context, customerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, e := range s.entries[customerID] {
		sum += e.Delta
	}
	return sum, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, customerID string, limit, offset int) ([]*credit.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[customerID]
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	result := make([]*credit.LedgerEntry, len(all))
	copy(result, all)
	return result, nil
}

// Usage metering Store implementation

func (s *Store) InsertUsageRecord(_ context.Context, record *meter.UsageRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.SubscriptionItemID + "\x00" + record.IdempotencyToken
	if s.usageSeen[key] {
		return false, nil
	}
	s.usageSeen[key] = true
	s.usage = append(s.usage, record)
	return true, nil
}

func (s *Store) SumUsage(_ context.Context, subscriptionItemID, bucket string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, r := range s.usage {
		if r.SubscriptionItemID == subscriptionItemID && r.PeriodBucket == bucket {
			total += r.Quantity
		}
	}
	return total, nil
}

func (s *Store) MarkPeriodClosed(_ context.Context, subscriptionItemID, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closedBkts[subscriptionItemID+"\x00"+bucket] = true
	return nil
}

func (s *Store) IsPeriodClosed(_ context.Context, subscriptionItemID, bucket string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closedBkts[subscriptionItemID+"\x00"+bucket], nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
