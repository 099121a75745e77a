package reckon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/id"
	"github.com/xraph/reckon/meter"
	"github.com/xraph/reckon/notify"
	"github.com/xraph/reckon/provider"
	"github.com/xraph/reckon/store"
	"github.com/xraph/reckon/subscription"
	"github.com/xraph/reckon/webhook"
)

// Engine is the provider event ingestion core. It verifies, deduplicates,
// and routes inbound billing events, maintaining the subscription, credit,
// and usage state that downstream code reads.
type Engine struct {
	store       store.Store
	verifier    *webhook.Verifier
	machine     *subscription.Machine
	ledger      *credit.Ledger
	meter       *meter.Meter
	subscribers *notify.Registry
	provider    provider.Provider
	logger      *slog.Logger
	now         func() time.Time

	// Per-key serialization of domain mutations. Events for different
	// subscriptions or customers process fully in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// Deferred construction inputs
	webhookSecret string
	tolerance     time.Duration
	pending       []notify.Subscriber
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithWebhookSecret sets the shared secret for inbound signature
// verification. Without one, HandleEvent rejects everything.
func WithWebhookSecret(secret string) Option {
	return func(e *Engine) { e.webhookSecret = secret }
}

// WithTolerance overrides the signature freshness window. Zero disables the
// freshness check.
func WithTolerance(d time.Duration) Option {
	return func(e *Engine) { e.tolerance = d }
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSubscriber registers a lifecycle notification subscriber.
func WithSubscriber(s notify.Subscriber) Option {
	return func(e *Engine) { e.pending = append(e.pending, s) }
}

// WithProvider sets the outbound billing provider client used by the
// command surface (checkout, portal, cancel, refund).
func WithProvider(p provider.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// New creates an Engine on top of the given store.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		logger:    slog.Default(),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
		tolerance: webhook.DefaultTolerance,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.subscribers = notify.NewRegistry(notify.WithLogger(e.logger))
	for _, sub := range e.pending {
		if err := e.subscribers.Register(sub); err != nil {
			e.logger.Warn("subscriber registration failed", "name", sub.Name(), "error", err)
		}
	}
	e.pending = nil

	e.machine = subscription.NewMachine(e.now)
	e.ledger = credit.New(s, credit.WithLogger(e.logger), credit.WithClock(e.now))
	e.meter = meter.New(s, e.ledger, meter.WithLogger(e.logger), meter.WithClock(e.now))
	if e.webhookSecret != "" {
		e.verifier = webhook.New(e.webhookSecret, webhook.WithTolerance(e.tolerance))
	}

	return e
}

// Start migrates the store and reports readiness.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.logger.Info("reckon started",
		"verifier", e.verifier != nil,
		"subscribers", e.subscribers.Count(),
	)
	return nil
}

// Stop drains pending notifications and closes the store.
func (e *Engine) Stop() error {
	e.subscribers.Close()
	return e.store.Close()
}

// Receipt is the acknowledgment returned for an accepted event.
type Receipt struct {
	EventID string `json:"event_id"`
	// Outcome is the committed terminal outcome. Empty for a duplicate of
	// an event still in flight elsewhere.
	Outcome event.Outcome `json:"outcome,omitempty"`
	// Duplicate marks a redelivery of an already admitted event. No
	// effects were applied on this call.
	Duplicate bool `json:"duplicate,omitempty"`
}

// ──────────────────────────────────────────────────
// Event Ingestion
// ──────────────────────────────────────────────────

// HandleEvent runs the full ingestion pipeline for one raw provider
// delivery: signature verification, envelope parse, payload validation,
// admission, routing, commit, and notification fan-out.
//
// Errors for which IsRejection is true mean nothing was persisted and the
// transport should answer with a 400-class status. Any other error leaves
// the event uncommitted so the provider's redelivery retries it safely.
func (e *Engine) HandleEvent(ctx context.Context, payload []byte, sigHeader string) (*Receipt, error) {
	if e.verifier == nil {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	if err := e.verifier.Verify(payload, sigHeader); err != nil {
		if errors.Is(err, webhook.ErrTooOld) {
			return nil, fmt.Errorf("%w: %v", ErrStaleTimestamp, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ev, err := event.Parse(payload)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrMissingID):
			return nil, fmt.Errorf("%w: %v", ErrMissingEventID, err)
		case errors.Is(err, event.ErrMissingType):
			return nil, fmt.Errorf("%w: %v", ErrMissingEventType, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	}

	// Validate the typed payload before admission so malformed events are
	// rejected instead of being admitted and then failing.
	parsed, err := decodePayload(ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev.ReceivedAt = e.now().UTC()
	record := &event.Record{
		EventID:    ev.ID,
		Type:       ev.Type,
		Payload:    payload,
		ReceivedAt: ev.ReceivedAt,
	}
	admitted, fresh, err := e.store.AdmitEvent(ctx, record)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// Duplicate delivery: report the prior outcome without reapplying
		// effects. An in-flight prior attempt yields an empty outcome.
		return &Receipt{
			EventID:   ev.ID,
			Outcome:   admitted.Outcome,
			Duplicate: true,
		}, nil
	}

	fx, procErr := e.process(ctx, parsed)
	if procErr != nil {
		if err := e.store.CommitEvent(ctx, ev.ID, event.OutcomeFailed, procErr.Error()); err != nil {
			e.logger.Error("commit of failed event did not stick", "event_id", ev.ID, "error", err)
		}
		e.logger.Warn("event processing failed",
			"event_id", ev.ID,
			"type", ev.Type,
			"error", procErr,
		)
		return nil, procErr
	}

	if err := e.store.CommitEvent(ctx, ev.ID, fx.outcome, ""); err != nil {
		return nil, err
	}

	e.emit(ev, fx)

	e.logger.Debug("event processed",
		"event_id", ev.ID,
		"type", ev.Type,
		"outcome", fx.outcome,
	)
	return &Receipt{EventID: ev.ID, Outcome: fx.outcome}, nil
}

// parsedEvent bundles the envelope with its validated typed payload.
type parsedEvent struct {
	ev     *event.Event
	sub    *event.SubscriptionData
	inv    *event.InvoiceData
	charge *event.ChargeData
}

func decodePayload(ev *event.Event) (*parsedEvent, error) {
	p := &parsedEvent{ev: ev}
	var err error
	switch ev.Type {
	case event.TypeSubscriptionCreated, event.TypeSubscriptionUpdated, event.TypeSubscriptionDeleted:
		p.sub, err = event.DecodeSubscription(ev)
	case event.TypeInvoiceCreated, event.TypeInvoicePaid, event.TypeInvoicePaymentFailed:
		p.inv, err = event.DecodeInvoice(ev)
	case event.TypeChargeSucceeded, event.TypeChargeFailed, event.TypeChargeRefunded:
		p.charge, err = event.DecodeCharge(ev)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// effects collects the outcome and the notifications to fan out after the
// event commits. Observers never see effects of an uncommitted event.
type effects struct {
	outcome      event.Outcome
	stateChanges []notify.SubscriptionStateChange
	balances     []notify.BalanceChange
	usage        []notify.UsageBilled
	dunning      []notify.Dunning
}

func (e *Engine) process(ctx context.Context, p *parsedEvent) (*effects, error) {
	fx := &effects{outcome: event.OutcomeProcessed}

	switch p.ev.Type {
	case event.TypeSubscriptionCreated, event.TypeSubscriptionUpdated, event.TypeSubscriptionDeleted:
		return fx, e.processSubscription(ctx, p, fx)
	case event.TypeInvoiceCreated:
		return fx, e.processInvoiceCreated(ctx, p, fx)
	case event.TypeInvoicePaid, event.TypeInvoicePaymentFailed:
		return fx, e.processInvoiceLifecycle(ctx, p, fx)
	case event.TypeChargeSucceeded:
		// Informational; the invoice.paid event carries the state change.
		return fx, nil
	case event.TypeChargeFailed:
		return fx, e.processChargeFailed(ctx, p, fx)
	case event.TypeChargeRefunded:
		return fx, e.processChargeRefunded(ctx, p, fx)
	default:
		// Unknown types are acknowledged and recorded, never rejected.
		fx.outcome = event.OutcomeSkipped
		return fx, nil
	}
}

func (e *Engine) processSubscription(ctx context.Context, p *parsedEvent, fx *effects) error {
	unlock := e.lock(p.sub.ID)
	defer unlock()

	current, err := e.currentSubscription(ctx, p.sub.ID)
	if err != nil {
		return err
	}

	tr, err := e.machine.Apply(current, p.ev)
	if err != nil {
		return err
	}
	if tr.Stale {
		fx.outcome = event.OutcomeSkipped
		return nil
	}

	// Initial credit grant rides on the creation payload, keyed by the
	// provider subscription id so redeliveries stay idempotent. The grant
	// runs before the subscription row persists: persisting first would
	// advance the version, and a redelivery after a failed grant would gate
	// as stale and never retry it.
	if tr.Created && p.sub.Plan != nil && p.sub.Plan.InitialCredits > 0 {
		res, err := e.ledger.Credit(ctx, tr.Subscription.CustomerID, p.sub.Plan.InitialCredits,
			credit.ReasonSubscriptionGrant, p.sub.ID)
		if err != nil {
			return err
		}
		e.collectLedger(fx, res)
	}

	if tr.Created {
		if err := e.store.CreateSubscription(ctx, tr.Subscription); err != nil {
			return err
		}
	} else {
		if err := e.store.UpdateSubscription(ctx, tr.Subscription); err != nil {
			return err
		}
	}

	e.collectTransition(fx, tr)
	return nil
}

func (e *Engine) processInvoiceCreated(ctx context.Context, p *parsedEvent, fx *effects) error {
	if !p.inv.ForSubscription() {
		return nil
	}
	if err := e.putInvoiceRef(ctx, p.inv); err != nil {
		return err
	}

	unlock := e.lock(p.inv.CustomerID)
	defer unlock()

	// Metered lines close their usage bucket: sum, debit once, seal.
	for _, line := range p.inv.Lines {
		if !line.Metered || line.SubscriptionItemID == "" {
			continue
		}
		period := meter.Period{
			Start: time.Unix(line.PeriodStart, 0).UTC(),
			End:   time.Unix(line.PeriodEnd, 0).UTC(),
		}
		res, err := e.meter.ClosePeriod(ctx, p.inv.CustomerID, line.SubscriptionItemID, period)
		if err != nil {
			return err
		}
		if res.Debit != nil {
			if !res.Debit.Duplicate {
				fx.usage = append(fx.usage, notify.UsageBilled{
					SubscriptionItemID: line.SubscriptionItemID,
					Bucket:             res.Bucket,
					Quantity:           res.Quantity,
				})
			}
			e.collectLedger(fx, res.Debit)
		}
	}
	return nil
}

func (e *Engine) processInvoiceLifecycle(ctx context.Context, p *parsedEvent, fx *effects) error {
	if !p.inv.ForSubscription() {
		return nil
	}
	if err := e.putInvoiceRef(ctx, p.inv); err != nil {
		return err
	}

	unlock := e.lock(p.inv.SubscriptionID)
	defer unlock()

	sub, err := e.store.GetSubscriptionByProviderID(ctx, p.inv.SubscriptionID)
	if err != nil {
		return err
	}

	tr, err := e.machine.Apply(sub, p.ev)
	if err != nil {
		return err
	}
	if tr.Stale {
		fx.outcome = event.OutcomeSkipped
		return nil
	}
	// Recurring credit grant on each paid invoice, keyed by invoice id. As
	// with the initial grant, the credit lands before the version advance
	// persists so a failed grant stays retryable on redelivery.
	if p.ev.Type == event.TypeInvoicePaid && sub.MonthlyCredits > 0 {
		res, err := e.ledger.Credit(ctx, sub.CustomerID, sub.MonthlyCredits,
			credit.ReasonSubscriptionGrant, p.inv.ID)
		if err != nil {
			return err
		}
		e.collectLedger(fx, res)
	}

	if err := e.store.UpdateSubscription(ctx, tr.Subscription); err != nil {
		return err
	}
	e.collectTransition(fx, tr)
	return nil
}

func (e *Engine) processChargeFailed(ctx context.Context, p *parsedEvent, fx *effects) error {
	if !p.charge.LinkedToInvoice() {
		return nil
	}
	ref, err := e.store.GetInvoiceRef(ctx, p.charge.InvoiceID)
	if err != nil {
		if IsNotFound(err) {
			// One-off charge or an invoice we never tracked; nothing to do.
			fx.outcome = event.OutcomeSkipped
			return nil
		}
		return err
	}

	unlock := e.lock(ref.SubscriptionID)
	defer unlock()

	sub, err := e.store.GetSubscriptionByProviderID(ctx, ref.SubscriptionID)
	if err != nil {
		return err
	}

	tr, err := e.machine.Apply(sub, p.ev)
	if err != nil {
		return err
	}
	if tr.Stale {
		fx.outcome = event.OutcomeSkipped
		return nil
	}
	if err := e.store.UpdateSubscription(ctx, tr.Subscription); err != nil {
		return err
	}
	e.collectTransition(fx, tr)
	return nil
}

func (e *Engine) processChargeRefunded(ctx context.Context, p *parsedEvent, fx *effects) error {
	amount := p.charge.AmountRefunded.Amount
	if amount <= 0 {
		return nil
	}
	res, err := e.ledger.Credit(ctx, p.charge.CustomerID, amount,
		credit.ReasonRefundCredit, p.charge.ID)
	if err != nil {
		return err
	}
	e.collectLedger(fx, res)
	return nil
}

func (e *Engine) putInvoiceRef(ctx context.Context, inv *event.InvoiceData) error {
	return e.store.PutInvoiceRef(ctx, &store.InvoiceRef{
		InvoiceID:      inv.ID,
		SubscriptionID: inv.SubscriptionID,
		CustomerID:     inv.CustomerID,
	})
}

func (e *Engine) currentSubscription(ctx context.Context, providerID string) (*subscription.Subscription, error) {
	sub, err := e.store.GetSubscriptionByProviderID(ctx, providerID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (e *Engine) collectTransition(fx *effects, tr *subscription.Transition) {
	if tr.Changed() {
		fx.stateChanges = append(fx.stateChanges, notify.SubscriptionStateChange{
			SubscriptionID: tr.Subscription.ProviderID,
			CustomerID:     tr.Subscription.CustomerID,
			From:           tr.From,
			To:             tr.To,
		})
	}
	if tr.Dunning {
		fx.dunning = append(fx.dunning, notify.Dunning{
			CustomerID:     tr.Subscription.CustomerID,
			SubscriptionID: tr.Subscription.ProviderID,
		})
	}
}

func (e *Engine) collectLedger(fx *effects, res *credit.Result) {
	if res.Duplicate {
		return
	}
	fx.balances = append(fx.balances, notify.BalanceChange{
		CustomerID:  res.Entry.CustomerID,
		Delta:       res.Entry.Delta,
		Balance:     res.Balance,
		Reason:      res.Entry.Reason,
		ExternalRef: res.Entry.ExternalRef,
	})
}

// emit fans out the collected notifications. Delivery is asynchronous with
// retry; a slow or failing subscriber never blocks ingestion.
func (e *Engine) emit(ev *event.Event, fx *effects) {
	for _, c := range fx.stateChanges {
		e.subscribers.EmitSubscriptionStateChanged(c)
	}
	for _, b := range fx.balances {
		e.subscribers.EmitCreditBalanceChanged(b)
	}
	for _, u := range fx.usage {
		e.subscribers.EmitUsageBilled(u)
	}
	for _, d := range fx.dunning {
		e.subscribers.EmitDunning(d)
	}
	e.subscribers.EmitEventProcessed(notify.EventProcessed{
		EventID: ev.ID,
		Type:    ev.Type,
		Outcome: fx.outcome,
	})
}

// ──────────────────────────────────────────────────
// Credit Ledger
// ──────────────────────────────────────────────────

// GetBalance returns the customer's current credit balance.
func (e *Engine) GetBalance(ctx context.Context, customerID string) (int64, error) {
	return e.ledger.Balance(ctx, customerID)
}

// ListLedgerEntries returns ledger entries in insertion order.
func (e *Engine) ListLedgerEntries(ctx context.Context, customerID string, limit, offset int) ([]*credit.LedgerEntry, error) {
	return e.ledger.Entries(ctx, customerID, limit, offset)
}

// Credit applies a manual credit. externalRef is the caller's idempotency
// key: replays with the same key return the original entry.
func (e *Engine) Credit(ctx context.Context, customerID string, amount int64, externalRef string) (*credit.Result, error) {
	res, err := e.ledger.Credit(ctx, customerID, amount, credit.ReasonManualCredit, externalRef)
	if err != nil {
		return nil, mapCreditErr(err)
	}
	e.notifyLedger(res)
	return res, nil
}

// Debit applies a manual debit under the non-negative balance rule.
func (e *Engine) Debit(ctx context.Context, customerID string, amount int64, externalRef string) (*credit.Result, error) {
	res, err := e.ledger.Debit(ctx, customerID, amount, credit.ReasonManualDebit, externalRef)
	if err != nil {
		return nil, mapCreditErr(err)
	}
	e.notifyLedger(res)
	return res, nil
}

func (e *Engine) notifyLedger(res *credit.Result) {
	if res.Duplicate {
		return
	}
	e.subscribers.EmitCreditBalanceChanged(notify.BalanceChange{
		CustomerID:  res.Entry.CustomerID,
		Delta:       res.Entry.Delta,
		Balance:     res.Balance,
		Reason:      res.Entry.Reason,
		ExternalRef: res.Entry.ExternalRef,
	})
}

// ──────────────────────────────────────────────────
// Usage Metering
// ──────────────────────────────────────────────────

// ReportUsage records a usage quantity against a subscription item. token
// is the reporter's idempotency key within the item.
func (e *Engine) ReportUsage(ctx context.Context, itemID string, quantity int64, ts time.Time, token string, period meter.Period) (meter.Status, error) {
	st, err := e.meter.Report(ctx, itemID, quantity, ts, token, period)
	if err != nil {
		return st, mapMeterErr(err)
	}
	return st, nil
}

// ClosePeriod sums the item's usage for the period, debits it once, and
// seals the bucket. Normally driven by invoice.created events; exposed for
// providers that do not emit metered invoice lines.
func (e *Engine) ClosePeriod(ctx context.Context, customerID, itemID string, period meter.Period) (*meter.CloseResult, error) {
	unlock := e.lock(customerID)
	defer unlock()

	res, err := e.meter.ClosePeriod(ctx, customerID, itemID, period)
	if err != nil {
		return nil, mapMeterErr(err)
	}
	if res.Debit != nil {
		if !res.Debit.Duplicate {
			e.subscribers.EmitUsageBilled(notify.UsageBilled{
				SubscriptionItemID: itemID,
				Bucket:             res.Bucket,
				Quantity:           res.Quantity,
			})
		}
		e.notifyLedger(res.Debit)
	}
	return res, nil
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// GetSubscription retrieves a subscription by internal id.
func (e *Engine) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// GetSubscriptionByProviderID retrieves a subscription by the provider's id.
func (e *Engine) GetSubscriptionByProviderID(ctx context.Context, providerID string) (*subscription.Subscription, error) {
	return e.store.GetSubscriptionByProviderID(ctx, providerID)
}

// ListSubscriptions returns all subscriptions for a customer.
func (e *Engine) ListSubscriptions(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptionsByCustomer(ctx, customerID)
}

// GetEvent returns the stored processing record for an event id.
func (e *Engine) GetEvent(ctx context.Context, eventID string) (*event.Record, error) {
	return e.store.GetEvent(ctx, eventID)
}

// ──────────────────────────────────────────────────
// Provider Commands
// ──────────────────────────────────────────────────

// CreateCustomer creates a customer record at the provider.
func (e *Engine) CreateCustomer(ctx context.Context, email, name string) (*provider.Customer, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	cust, err := e.provider.CreateCustomer(ctx, email, name)
	return cust, mapProviderErr(err)
}

// CancelSubscription asks the provider to cancel a subscription. Local
// state is not touched here; the cancellation lands as a
// subscription.deleted event.
func (e *Engine) CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error {
	if e.provider == nil {
		return ErrProviderNotConfigured
	}
	return mapProviderErr(e.provider.CancelSubscription(ctx, providerSubscriptionID, atPeriodEnd))
}

// CreateCheckoutSession starts a hosted checkout for a customer and price.
func (e *Engine) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*provider.CheckoutSession, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	sess, err := e.provider.CreateCheckoutSession(ctx, customerID, priceID, successURL, cancelURL)
	return sess, mapProviderErr(err)
}

// CreatePortalSession opens the hosted billing portal for a customer.
func (e *Engine) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*provider.PortalSession, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	sess, err := e.provider.CreatePortalSession(ctx, customerID, returnURL)
	return sess, mapProviderErr(err)
}

// CreateRefund refunds a charge at the provider. The matching ledger credit
// is applied when the charge.refunded event arrives.
func (e *Engine) CreateRefund(ctx context.Context, chargeID string, amount int64) (*provider.Refund, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	ref, err := e.provider.CreateRefund(ctx, chargeID, amount)
	return ref, mapProviderErr(err)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// lock serializes mutations for one subscription/customer key and returns
// the unlock func.
func (e *Engine) lock(key string) func() {
	e.mu.Lock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func mapCreditErr(err error) error {
	switch {
	case errors.Is(err, credit.ErrInsufficientBalance):
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	case errors.Is(err, credit.ErrInvalidAmount), errors.Is(err, credit.ErrInvalidReason):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}

func mapMeterErr(err error) error {
	switch {
	case errors.Is(err, meter.ErrPeriodClosed):
		return fmt.Errorf("%w: %v", ErrPeriodClosed, err)
	case errors.Is(err, meter.ErrInvalidQuantity):
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	case errors.Is(err, meter.ErrOutsidePeriod):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, credit.ErrInsufficientBalance):
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	}
	return err
}

func mapProviderErr(err error) error {
	if err == nil {
		return nil
	}
	if provider.IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}
