// Package reckon is an embeddable ingestion core for billing provider
// events. It turns the provider's at-least-once webhook firehose into
// consistent local state: subscription lifecycle, a non-negative credit
// ledger, and metered usage — all idempotent under redelivery, replay, and
// out-of-order arrival.
//
// Reckon is designed as a library, not a service. Your transport handler
// hands the raw payload and signature header to the engine; everything
// else — verification, dedup, routing, notification fan-out — happens
// inside:
//
//   - HMAC signature verification with a bounded freshness window
//   - At-most-once event completion via atomic admission
//   - A version-gated subscription state machine
//   - An append-only credit ledger with (reason, reference) idempotency
//   - Idempotent usage reporting with externally-triggered period close
//   - Typed lifecycle notifications with bounded retry delivery
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/reckon"
//	    "github.com/xraph/reckon/store/postgres"
//	)
//
//	st := postgres.New(db)
//
//	engine := reckon.New(st,
//	    reckon.WithWebhookSecret(secret),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// Wire the webhook endpoint to the engine:
//
//	http.HandleFunc("/webhooks/billing", func(w http.ResponseWriter, r *http.Request) {
//	    payload, _ := io.ReadAll(r.Body)
//	    receipt, err := engine.HandleEvent(r.Context(), payload, r.Header.Get("Signature"))
//	    if err != nil {
//	        if reckon.IsRejection(err) {
//	            w.WriteHeader(http.StatusBadRequest)
//	        } else {
//	            w.WriteHeader(http.StatusInternalServerError) // provider will redeliver
//	        }
//	        return
//	    }
//	    _ = receipt // 200: acknowledged, duplicate or not
//	})
//
// # Delivery Semantics
//
// The provider delivers at least once; Reckon completes at most once. The
// event id is the dedup key: a redelivered event returns the prior outcome
// without reapplying effects, and only events that failed mid-processing
// are retried in full. Per-entity event versions only move forward, so a
// late event carrying older state is acknowledged as a no-op instead of
// clobbering newer state.
//
// # Credits and Usage
//
// The ledger records integer credit deltas; the balance is the sum of
// committed entries and never goes negative. Every entry carries a
// (reason, externalRef) pair that makes retries idempotent — replaying a
// grant, refund, or usage debit returns the original entry. Usage reports
// are deduplicated per subscription item by an idempotency token, and a
// period's accumulated usage is debited exactly once when the provider's
// invoice closes the period.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	led_01h455vb4pex5vsknk084sn02q   // Ledger entry ID
//	usg_01h455vb4pex5vsknk084sn02q   // Usage record ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package reckon
