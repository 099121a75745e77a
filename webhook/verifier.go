// Package webhook verifies the authenticity and freshness of inbound
// provider event payloads before anything else touches them.
//
// The signature scheme is the provider's standard MAC-over-raw-bytes format:
// the signature header carries a unix timestamp and one or more HMAC-SHA256
// signatures computed over "<timestamp>.<payload>", e.g.
//
//	t=1700000000,v1=5257a869e7ecebeda32affa62cdca3fa51cad7e77a0e56ff536d0ce8e108d8bd
//
// Multiple v1 entries are accepted to support signing secret rotation.
// Validation is delegated to stripe-go's webhook package; this package only
// adds explicit secret/tolerance injection and a signing helper. Verification
// is pure: no side effects, no persistence. On failure the caller rejects the
// delivery and must not persist the event.
package webhook

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

// DefaultTolerance is the default clock-skew window for the signature
// timestamp. Deliveries older than this are rejected as potential replays of
// captured payloads.
const DefaultTolerance = webhook.DefaultTolerance

// Verification errors, aliased so callers never import the provider SDK.
var (
	ErrNoSignature      = webhook.ErrNotSigned
	ErrInvalidHeader    = webhook.ErrInvalidHeader
	ErrNoValidSignature = webhook.ErrNoValidSignature
	ErrTooOld           = webhook.ErrTooOld
)

// Verifier validates inbound payload signatures. The signing secret is an
// explicit constructor argument — never ambient configuration.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTolerance overrides the freshness window. A tolerance of zero disables
// the freshness check entirely (useful when replaying stored events).
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) { v.tolerance = d }
}

// New creates a Verifier for the given signing secret.
func New(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:    secret,
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature header against the raw payload bytes.
// It returns nil only if at least one v1 signature matches the expected MAC
// and the timestamp is within the tolerance window.
func (v *Verifier) Verify(payload []byte, header string) error {
	if v.tolerance > 0 {
		return webhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance)
	}
	return webhook.ValidatePayloadIgnoringTolerance(payload, header, v.secret)
}

// Sign produces a signature header for the given payload at the given time.
// Intended for test fixtures and for local replay tooling.
func Sign(secret string, payload []byte, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}
