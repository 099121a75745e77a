package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Registry manages subscribers and dispatches notifications. Subscriber
// interfaces are cached at registration for cheap dispatch; each delivery
// runs in its own goroutine so one slow subscriber never delays another.
type Registry struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *slog.Logger

	callTimeout time.Duration
	maxTries    uint
	newBackOff  func() backoff.BackOff

	// Type-cached subscriber lists.
	onStateChanged   []OnSubscriptionStateChanged
	onBalanceChanged []OnCreditBalanceChanged
	onUsageBilled    []OnUsageBilled
	onEventProcessed []OnEventProcessed
	onDunning        []OnDunning

	// Root context for in-flight deliveries; canceled by Close. A canceled
	// retry loses nothing durable: the committed domain state is the source
	// of truth and is reconstructable by replaying stored events.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithCallTimeout bounds a single delivery attempt to one subscriber.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.callTimeout = d }
}

// WithMaxTries bounds redelivery attempts per subscriber per notification.
func WithMaxTries(n uint) RegistryOption {
	return func(r *Registry) { r.maxTries = n }
}

// WithBackOff overrides the backoff factory. Used in tests to avoid real
// delays.
func WithBackOff(factory func() backoff.BackOff) RegistryOption {
	return func(r *Registry) { r.newBackOff = factory }
}

// NewRegistry creates a subscriber registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		logger:      slog.Default(),
		callTimeout: 5 * time.Second,
		maxTries:    5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a subscriber and caches the notification interfaces it
// implements. Names must be unique.
func (r *Registry) Register(s Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.subscribers {
		if existing.Name() == s.Name() {
			return fmt.Errorf("notify: duplicate subscriber: %s", s.Name())
		}
	}
	r.subscribers = append(r.subscribers, s)

	var interfaces []string
	if v, ok := s.(OnSubscriptionStateChanged); ok {
		r.onStateChanged = append(r.onStateChanged, v)
		interfaces = append(interfaces, "OnSubscriptionStateChanged")
	}
	if v, ok := s.(OnCreditBalanceChanged); ok {
		r.onBalanceChanged = append(r.onBalanceChanged, v)
		interfaces = append(interfaces, "OnCreditBalanceChanged")
	}
	if v, ok := s.(OnUsageBilled); ok {
		r.onUsageBilled = append(r.onUsageBilled, v)
		interfaces = append(interfaces, "OnUsageBilled")
	}
	if v, ok := s.(OnEventProcessed); ok {
		r.onEventProcessed = append(r.onEventProcessed, v)
		interfaces = append(interfaces, "OnEventProcessed")
	}
	if v, ok := s.(OnDunning); ok {
		r.onDunning = append(r.onDunning, v)
		interfaces = append(interfaces, "OnDunning")
	}

	r.logger.Info("subscriber registered",
		"name", s.Name(),
		"interfaces", interfaces,
	)
	return nil
}

// List returns all registered subscribers.
func (r *Registry) List() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Subscriber, len(r.subscribers))
	copy(result, r.subscribers)
	return result
}

// Count returns the number of registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// ──────────────────────────────────────────────────
// Emission
// ──────────────────────────────────────────────────

// EmitSubscriptionStateChanged fans out a lifecycle transition.
func (r *Registry) EmitSubscriptionStateChanged(change SubscriptionStateChange) {
	r.mu.RLock()
	subs := r.onStateChanged
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s.Name(), "subscription_state_changed", func(ctx context.Context) error {
			return s.OnSubscriptionStateChanged(ctx, change)
		})
	}
}

// EmitCreditBalanceChanged fans out a committed balance adjustment.
func (r *Registry) EmitCreditBalanceChanged(change BalanceChange) {
	r.mu.RLock()
	subs := r.onBalanceChanged
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s.Name(), "credit_balance_changed", func(ctx context.Context) error {
			return s.OnCreditBalanceChanged(ctx, change)
		})
	}
}

// EmitUsageBilled fans out a period-close settlement.
func (r *Registry) EmitUsageBilled(billed UsageBilled) {
	r.mu.RLock()
	subs := r.onUsageBilled
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s.Name(), "usage_billed", func(ctx context.Context) error {
			return s.OnUsageBilled(ctx, billed)
		})
	}
}

// EmitEventProcessed fans out a terminal event outcome.
func (r *Registry) EmitEventProcessed(processed EventProcessed) {
	r.mu.RLock()
	subs := r.onEventProcessed
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s.Name(), "event_processed", func(ctx context.Context) error {
			return s.OnEventProcessed(ctx, processed)
		})
	}
}

// EmitDunning fans out a failed-payment notification.
func (r *Registry) EmitDunning(dunning Dunning) {
	r.mu.RLock()
	subs := r.onDunning
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s.Name(), "dunning", func(ctx context.Context) error {
			return s.OnDunning(ctx, dunning)
		})
	}
}

// deliver runs one subscriber callback asynchronously with bounded
// exponential backoff. Exhausted retries are logged and dropped; the domain
// state already committed and is not affected.
func (r *Registry) deliver(name, kind string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		attempt := func() (struct{}, error) {
			return struct{}{}, r.callWithTimeout(fn)
		}

		_, err := backoff.Retry(r.ctx, attempt,
			backoff.WithBackOff(r.newBackOff()),
			backoff.WithMaxTries(r.maxTries),
		)
		if err != nil {
			r.logger.Warn("notification delivery failed",
				"subscriber", name,
				"notification", kind,
				"error", err,
			)
		}
	}()
}

// callWithTimeout bounds a single delivery attempt. Subscribers must never
// stall the pipeline indefinitely.
func (r *Registry) callWithTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.callTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until all in-flight deliveries finish. Intended for tests and
// graceful drains.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Close cancels pending redeliveries and waits for goroutines to exit.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}
