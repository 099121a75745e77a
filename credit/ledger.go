package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/reckon/id"
)

// Ledger errors.
var (
	ErrInsufficientBalance = errors.New("credit: insufficient balance")
	ErrInvalidAmount       = errors.New("credit: amount must be positive")
	ErrInvalidReason       = errors.New("credit: unrecognized reason")
)

// Store is the persistence surface the ledger needs. The unified store
// satisfies it.
type Store interface {
	// AppendLedgerEntry persists an entry. Entries are immutable once
	// appended.
	AppendLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	// FindLedgerEntry returns the entry matching the idempotency key, or
	// (nil, nil) when none exists.
	FindLedgerEntry(ctx context.Context, customerID string, reason Reason, externalRef string) (*LedgerEntry, error)
	// LedgerBalance returns the sum of committed deltas for the customer.
	// A customer with no entries has balance zero.
	LedgerBalance(ctx context.Context, customerID string) (int64, error)
	// ListLedgerEntries returns entries in insertion order.
	ListLedgerEntries(ctx context.Context, customerID string, limit, offset int) ([]*LedgerEntry, error)
}

// Result is the outcome of a credit or debit.
//
// Duplicate means the (reason, external ref) pair was already committed for
// this customer: Entry is the original entry and Balance is the current
// balance — nothing was applied twice.
type Result struct {
	Entry     *LedgerEntry
	Balance   int64
	Duplicate bool
}

// Ledger applies atomic balance adjustments. Operations for the same
// customer are serialized on a per-customer mutex so concurrent callers can
// never interleave the balance check with the append; different customers
// proceed fully in parallel.
type Ledger struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	reads singleflight.Group
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Credit appends a positive adjustment. It always succeeds for a valid
// amount; balances have no ceiling.
func (l *Ledger) Credit(ctx context.Context, customerID string, amount int64, reason Reason, externalRef string) (*Result, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return l.apply(ctx, customerID, amount, reason, externalRef)
}

// Debit appends a negative adjustment after an atomic balance check. It
// fails with ErrInsufficientBalance — leaving the balance untouched — when
// the customer does not hold enough credit.
func (l *Ledger) Debit(ctx context.Context, customerID string, amount int64, reason Reason, externalRef string) (*Result, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return l.apply(ctx, customerID, -amount, reason, externalRef)
}

func (l *Ledger) apply(ctx context.Context, customerID string, delta int64, reason Reason, externalRef string) (*Result, error) {
	if customerID == "" {
		return nil, fmt.Errorf("credit: customer id is required")
	}
	if delta == 0 {
		return nil, fmt.Errorf("%w: got 0", ErrInvalidAmount)
	}
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	if externalRef == "" {
		return nil, fmt.Errorf("credit: external ref is required")
	}

	lock := l.lockFor(customerID)
	lock.Lock()
	defer lock.Unlock()

	// Idempotency: a retried operation with the same key collapses onto
	// the entry it created the first time.
	existing, err := l.store.FindLedgerEntry(ctx, customerID, reason, externalRef)
	if err != nil {
		return nil, fmt.Errorf("credit: lookup idempotency key: %w", err)
	}
	if existing != nil {
		balance, err := l.store.LedgerBalance(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("credit: read balance: %w", err)
		}
		return &Result{Entry: existing, Balance: balance, Duplicate: true}, nil
	}

	balance, err := l.store.LedgerBalance(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("credit: read balance: %w", err)
	}
	if balance+delta < 0 {
		return nil, fmt.Errorf("%w: balance %d, debit %d", ErrInsufficientBalance, balance, -delta)
	}

	entry := &LedgerEntry{
		ID:          id.NewLedgerEntryID(),
		CustomerID:  customerID,
		Delta:       delta,
		Reason:      reason,
		ExternalRef: externalRef,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.store.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("credit: append entry: %w", err)
	}

	l.logger.Debug("ledger entry committed",
		"customer_id", customerID,
		"delta", delta,
		"reason", reason,
		"external_ref", externalRef,
		"balance", balance+delta)

	return &Result{Entry: entry, Balance: balance + delta}, nil
}

// Balance returns the customer's current balance. Concurrent reads for the
// same customer are collapsed into a single store query.
func (l *Ledger) Balance(ctx context.Context, customerID string) (int64, error) {
	v, err, _ := l.reads.Do(customerID, func() (any, error) {
		return l.store.LedgerBalance(ctx, customerID)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Entries returns the customer's ledger entries in insertion order.
func (l *Ledger) Entries(ctx context.Context, customerID string, limit, offset int) ([]*LedgerEntry, error) {
	return l.store.ListLedgerEntries(ctx, customerID, limit, offset)
}

// lockFor returns the mutex serializing mutations for a customer. Locks are
// created on demand and retained; the set is bounded by the customer count.
func (l *Ledger) lockFor(customerID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[customerID] = lock
	}
	return lock
}
