// Package stripe implements provider.Provider against the Stripe API.
package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/xraph/reckon/provider"
)

// compile-time interface check
var _ provider.Provider = (*Provider)(nil)

// Provider issues commands to Stripe through a dedicated client. The client
// is instance-scoped rather than the package-global one so multiple engines
// with different keys can coexist in one process.
type Provider struct {
	client *client.API
}

// New creates a Stripe provider with the given secret key.
func New(secretKey string) *Provider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Provider{client: sc}
}

func (p *Provider) CreateCustomer(ctx context.Context, email, name string) (*provider.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	cus, err := p.client.Customers.New(params)
	if err != nil {
		return nil, mapError("create customer", err)
	}
	return &provider.Customer{
		ID:    cus.ID,
		Email: cus.Email,
		Name:  cus.Name,
	}, nil
}

func (p *Provider) CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx
		if _, err := p.client.Subscriptions.Update(providerSubscriptionID, params); err != nil {
			return mapError("cancel subscription at period end", err)
		}
		return nil
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.client.Subscriptions.Cancel(providerSubscriptionID, params); err != nil {
		return mapError("cancel subscription", err)
	}
	return nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*provider.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	sess, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapError("create checkout session", err)
	}
	return &provider.CheckoutSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

func (p *Provider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*provider.PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.client.BillingPortalSessions.New(params)
	if err != nil {
		return nil, mapError("create portal session", err)
	}
	return &provider.PortalSession{URL: sess.URL}, nil
}

func (p *Provider) CreateRefund(ctx context.Context, chargeID string, amount int64) (*provider.Refund, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(chargeID),
	}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	params.Context = ctx

	ref, err := p.client.Refunds.New(params)
	if err != nil {
		return nil, mapError("create refund", err)
	}

	result := &provider.Refund{
		ID:     ref.ID,
		Amount: ref.Amount,
		Status: string(ref.Status),
	}
	if ref.Charge != nil {
		result.ChargeID = ref.Charge.ID
	}
	return result, nil
}

// mapError translates Stripe errors into the provider sentinels so callers
// never import stripe-go to classify failures.
func mapError(op string, err error) error {
	if isRetryable(err) {
		return fmt.Errorf("%w: %s: %v", provider.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %v", provider.ErrRejected, op, err)
}
