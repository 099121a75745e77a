// Package event defines the inbound provider event model: the wire envelope,
// the typed payload variants per event type, and the persisted processing
// record used for deduplication and audit/replay.
package event

import (
	"encoding/json"
	"errors"
	"time"
)

// Type is the provider event type, e.g. "subscription.created".
// The vocabulary is open-ended: types Reckon does not recognize are accepted
// and recorded as skipped, never rejected.
type Type string

// Event types Reckon acts on.
const (
	TypeSubscriptionCreated  Type = "subscription.created"
	TypeSubscriptionUpdated  Type = "subscription.updated"
	TypeSubscriptionDeleted  Type = "subscription.deleted"
	TypeInvoiceCreated       Type = "invoice.created"
	TypeInvoicePaid          Type = "invoice.paid"
	TypeInvoicePaymentFailed Type = "invoice.payment_failed"
	TypeChargeSucceeded      Type = "charge.succeeded"
	TypeChargeFailed         Type = "charge.failed"
	TypeChargeRefunded       Type = "charge.refunded"
)

// Known reports whether Reckon has a handler for this event type.
func (t Type) Known() bool {
	switch t {
	case TypeSubscriptionCreated, TypeSubscriptionUpdated, TypeSubscriptionDeleted,
		TypeInvoiceCreated, TypeInvoicePaid, TypeInvoicePaymentFailed,
		TypeChargeSucceeded, TypeChargeFailed, TypeChargeRefunded:
		return true
	}
	return false
}

// Outcome is the terminal processing result recorded for an event.
type Outcome string

const (
	// OutcomeProcessed: all interested components applied the event.
	OutcomeProcessed Outcome = "processed"
	// OutcomeFailed: a component failed; the event is safe to redeliver.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped: unknown type or stale version — acknowledged no-op.
	OutcomeSkipped Outcome = "skipped"
)

// Envelope parse errors.
var (
	ErrMissingID   = errors.New("event: envelope has no id")
	ErrMissingType = errors.New("event: envelope has no type")
	ErrBadJSON     = errors.New("event: envelope is not valid JSON")
)

// Event is a verified, parsed inbound provider event.
//
// ID is assigned by the provider and is the deduplication key: an Event with
// a given ID is processed at most once to completion. Version is the
// provider's sequence hint for its target entity; when the envelope carries
// no explicit version the provider creation timestamp (unix seconds) is used.
// ReceivedAt is left zero by Parse; the engine stamps it from its own clock
// at admission.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	ReceivedAt time.Time       `json:"received_at"`
	Livemode   bool            `json:"livemode"`
	Object     json.RawMessage `json:"object"`
}

// envelope mirrors the provider wire format. Unknown fields are ignored.
type envelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Version  int64  `json:"version"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Parse decodes a raw provider payload into an Event. It validates only the
// envelope: id and type must be present. Payload object validation happens
// per-type via the Decode* helpers, still before admission.
func Parse(payload []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrBadJSON
	}
	if env.ID == "" {
		return nil, ErrMissingID
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}

	version := env.Version
	if version == 0 {
		version = env.Created
	}

	return &Event{
		ID:         env.ID,
		Type:       Type(env.Type),
		Version:    version,
		CreatedAt:  time.Unix(env.Created, 0).UTC(),
		Livemode:   env.Livemode,
		Object:     env.Data.Object,
	}, nil
}

// Record is the persisted processing record for an event. Terminal once the
// outcome is set; retained for audit and replay.
type Record struct {
	EventID     string          `json:"event_id"`
	Type        Type            `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	ReceivedAt  time.Time       `json:"received_at"`
	Outcome     Outcome         `json:"outcome,omitempty"`
	Error       string          `json:"error,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// Terminal reports whether the record has a committed outcome.
func (r *Record) Terminal() bool {
	return r.Outcome != ""
}
