// Package credit implements the append-only credit ledger: per-customer
// integer balances adjusted only through committed, immutable entries.
//
// The balance invariant is strict: balance == sum of committed deltas, and a
// committed debit never leaves it negative. The (reason, external ref) pair
// is an idempotency key — a retried operation collapses onto the entry it
// created the first time.
package credit

import (
	"time"

	"github.com/xraph/reckon/id"
)

// Reason classifies a ledger entry. Every adjustment carries one, which
// makes the ledger auditable without consulting anything else.
type Reason string

const (
	ReasonManualCredit      Reason = "manual_credit"
	ReasonManualDebit       Reason = "manual_debit"
	ReasonUsageDebit        Reason = "usage_debit"
	ReasonRefundCredit      Reason = "refund_credit"
	ReasonPlanChangeCredit  Reason = "plan_change_credit"
	ReasonSubscriptionGrant Reason = "subscription_grant"
)

// Valid reports whether r is a recognized reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonManualCredit, ReasonManualDebit, ReasonUsageDebit, ReasonRefundCredit,
		ReasonPlanChangeCredit, ReasonSubscriptionGrant:
		return true
	}
	return false
}

// LedgerEntry is one immutable, signed balance adjustment. Credits carry a
// positive delta, debits a negative one. ExternalRef ties the entry to the
// thing that caused it (invoice id, charge id, usage bucket).
type LedgerEntry struct {
	ID          id.LedgerEntryID `json:"id"`
	CustomerID  string           `json:"customer_id"`
	Delta       int64            `json:"delta"`
	Reason      Reason           `json:"reason"`
	ExternalRef string           `json:"external_ref"`
	CreatedAt   time.Time        `json:"created_at"`
}

// IsCredit reports whether the entry increased the balance.
func (e *LedgerEntry) IsCredit() bool { return e.Delta > 0 }
