// Package provider defines the outbound command surface toward the billing
// provider. The engine never calls the provider while processing an event;
// commands issued here come back as webhook events and flow through the
// normal ingestion pipeline.
package provider

import (
	"context"
	"errors"
)

// Sentinel errors returned by provider implementations.
var (
	// ErrUnavailable indicates a transient provider-side failure. Callers
	// may retry.
	ErrUnavailable = errors.New("provider: temporarily unavailable")

	// ErrRejected indicates the provider refused the command (declined
	// card, unknown object, invalid parameters). Retrying will not help.
	ErrRejected = errors.New("provider: command rejected")
)

// Customer is the provider-side customer handle.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// CheckoutSession is a provider-hosted payment page for starting a
// subscription.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSession is a provider-hosted self-service billing page.
type PortalSession struct {
	URL string
}

// Refund is the result of a refund command. The ledger credit for it is
// applied when the corresponding charge.refunded event arrives, not here.
type Refund struct {
	ID       string
	ChargeID string
	Amount   int64
	Status   string
}

// Provider issues commands to the billing provider.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// CreateCustomer registers a customer with the provider and returns
	// the provider-side handle.
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)

	// CancelSubscription requests cancellation of a provider
	// subscription. When atPeriodEnd is true the subscription stays
	// active until the current period closes.
	CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error

	// CreateCheckoutSession starts a hosted checkout for the given
	// customer and price.
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error)

	// CreatePortalSession opens the hosted billing portal for a customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)

	// CreateRefund refunds a charge, fully when amount is zero.
	CreateRefund(ctx context.Context, chargeID string, amount int64) (*Refund, error)
}

// IsRetryable reports whether a provider command may be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
