package reckon_test

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/reckon"
	"github.com/xraph/reckon/store/memory"
	"github.com/xraph/reckon/types"
	"github.com/xraph/reckon/webhook"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		engine := reckon.New(store,
			reckon.WithLogger(slog.Default()),
			reckon.WithWebhookSecret("whsec_demo"),
			reckon.WithTolerance(5*time.Minute),
		)

		// Start the engine
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// A transport handler hands the raw payload and signature header to
		// the engine. Signed here the way the provider would.
		payload, _ := json.Marshal(map[string]any{
			"id":      "evt_demo_1",
			"type":    "subscription.created",
			"version": 1,
			"data": map[string]any{
				"object": map[string]any{
					"id":                   "sub_ext_demo",
					"customer":             "cus_demo",
					"status":               "active",
					"current_period_start": time.Now().Unix(),
					"current_period_end":   time.Now().Add(30 * 24 * time.Hour).Unix(),
					"plan": map[string]any{
						"id":              "plan_pro",
						"initial_credits": 100,
					},
				},
			},
		})
		sig := webhook.Sign("whsec_demo", payload, time.Now())

		receipt, err := engine.HandleEvent(ctx, payload, sig)
		if err != nil {
			if reckon.IsRejection(err) {
				t.Fatal(err) // would be a 400 at the transport
			}
			t.Fatal(err) // would be a 500: the provider redelivers
		}
		log.Printf("event %s: %s (duplicate=%v)\n", receipt.EventID, receipt.Outcome, receipt.Duplicate)

		// Read the state the event produced
		sub, err := engine.GetSubscriptionByProviderID(ctx, "sub_ext_demo")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("subscription %s is %s\n", sub.ID, sub.State)

		balance, err := engine.GetBalance(ctx, "cus_demo")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("balance: %d credits\n", balance)

		// Manual grants use the caller's idempotency key
		if _, err := engine.Credit(ctx, "cus_demo", 50, "support-ticket-991"); err != nil {
			t.Fatal(err)
		}
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)      // $3.00
		_ = m2.Subtract(m1) // $1.00
		_ = m1.Negate()     // -$1.00

		// Comparison
		if !m1.Equal(m2) {
			// different amounts
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
