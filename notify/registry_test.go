package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/reckon/event"
	"github.com/xraph/reckon/notify"
	"github.com/xraph/reckon/subscription"
)

// recorder implements every notification interface and records calls.
type recorder struct {
	name string

	mu           sync.Mutex
	states       []notify.SubscriptionStateChange
	balances     []notify.BalanceChange
	billed       []notify.UsageBilled
	processed    []notify.EventProcessed
	dunnings     []notify.Dunning
	failuresLeft int
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) fail() error {
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return errors.New("transient subscriber failure")
	}
	return nil
}

func (r *recorder) OnSubscriptionStateChanged(_ context.Context, c notify.SubscriptionStateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.states = append(r.states, c)
	return nil
}

func (r *recorder) OnCreditBalanceChanged(_ context.Context, c notify.BalanceChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.balances = append(r.balances, c)
	return nil
}

func (r *recorder) OnUsageBilled(_ context.Context, b notify.UsageBilled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.billed = append(r.billed, b)
	return nil
}

func (r *recorder) OnEventProcessed(_ context.Context, p notify.EventProcessed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, p)
	return nil
}

func (r *recorder) OnDunning(_ context.Context, d notify.Dunning) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dunnings = append(r.dunnings, d)
	return nil
}

// balanceOnly subscribes to balance changes and nothing else.
type balanceOnly struct {
	mu       sync.Mutex
	balances []notify.BalanceChange
}

func (s *balanceOnly) Name() string { return "balance-only" }

func (s *balanceOnly) OnCreditBalanceChanged(_ context.Context, c notify.BalanceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append(s.balances, c)
	return nil
}

func newRegistry(t *testing.T) *notify.Registry {
	t.Helper()
	r := notify.NewRegistry(
		notify.WithBackOff(func() backoff.BackOff {
			return backoff.NewConstantBackOff(time.Millisecond)
		}),
		notify.WithCallTimeout(time.Second),
		notify.WithMaxTries(4),
	)
	t.Cleanup(r.Close)
	return r
}

func TestRegisterDuplicateName(t *testing.T) {
	r := newRegistry(t)
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if r.Count() != 1 {
		t.Errorf("expected one subscriber, got %d", r.Count())
	}
}

func TestTypedDispatch(t *testing.T) {
	r := newRegistry(t)
	full := &recorder{name: "full"}
	partial := &balanceOnly{}
	if err := r.Register(full); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(partial); err != nil {
		t.Fatal(err)
	}

	r.EmitSubscriptionStateChanged(notify.SubscriptionStateChange{
		SubscriptionID: "sub_1",
		From:           subscription.StateActive,
		To:             subscription.StatePastDue,
	})
	r.EmitCreditBalanceChanged(notify.BalanceChange{CustomerID: "cus_1", Delta: -30, Balance: 70})
	r.EmitEventProcessed(notify.EventProcessed{EventID: "evt_1", Outcome: event.OutcomeProcessed})
	r.Wait()

	full.mu.Lock()
	defer full.mu.Unlock()
	if len(full.states) != 1 || full.states[0].To != subscription.StatePastDue {
		t.Errorf("expected one state change, got %+v", full.states)
	}
	if len(full.balances) != 1 || full.balances[0].Balance != 70 {
		t.Errorf("expected one balance change, got %+v", full.balances)
	}
	if len(full.processed) != 1 {
		t.Errorf("expected one processed event, got %+v", full.processed)
	}

	partial.mu.Lock()
	defer partial.mu.Unlock()
	if len(partial.balances) != 1 {
		t.Errorf("partial subscriber should receive balance changes, got %+v", partial.balances)
	}
}

func TestDeliveryRetriesTransientFailure(t *testing.T) {
	r := newRegistry(t)
	flaky := &recorder{name: "flaky", failuresLeft: 2}
	if err := r.Register(flaky); err != nil {
		t.Fatal(err)
	}

	r.EmitCreditBalanceChanged(notify.BalanceChange{CustomerID: "cus_1", Delta: 10, Balance: 10})
	r.Wait()

	flaky.mu.Lock()
	defer flaky.mu.Unlock()
	if len(flaky.balances) != 1 {
		t.Errorf("expected delivery to succeed after retries, got %+v", flaky.balances)
	}
}

func TestFailingSubscriberDoesNotBlockOthers(t *testing.T) {
	r := newRegistry(t)
	// Fails every attempt until retries are exhausted.
	broken := &recorder{name: "broken", failuresLeft: 100}
	healthy := &balanceOnly{}
	if err := r.Register(broken); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(healthy); err != nil {
		t.Fatal(err)
	}

	r.EmitCreditBalanceChanged(notify.BalanceChange{CustomerID: "cus_1", Delta: 5, Balance: 5})
	r.Wait()

	healthy.mu.Lock()
	defer healthy.mu.Unlock()
	if len(healthy.balances) != 1 {
		t.Errorf("healthy subscriber must receive delivery despite broken peer, got %+v", healthy.balances)
	}
}

func TestCloseCancelsPendingRetries(t *testing.T) {
	r := notify.NewRegistry(
		notify.WithBackOff(func() backoff.BackOff {
			return backoff.NewConstantBackOff(time.Hour) // never fires before Close
		}),
		notify.WithCallTimeout(time.Second),
		notify.WithMaxTries(10),
	)
	broken := &recorder{name: "broken", failuresLeft: 100}
	if err := r.Register(broken); err != nil {
		t.Fatal(err)
	}

	r.EmitDunning(notify.Dunning{CustomerID: "cus_1", SubscriptionID: "sub_1"})

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not cancel the pending retry")
	}
}
