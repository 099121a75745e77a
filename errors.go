package reckon

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("reckon: not found")
	ErrInvalidInput = errors.New("reckon: invalid input")

	// Webhook verification errors. These classify as client/transport
	// rejections: the caller responds 400 and nothing is persisted.
	ErrInvalidSignature = errors.New("reckon: webhook signature invalid")
	ErrStaleTimestamp   = errors.New("reckon: webhook timestamp outside tolerance")
	ErrMalformedEvent   = errors.New("reckon: malformed event payload")

	// Event errors
	ErrEventNotFound    = errors.New("reckon: event not found")
	ErrEventInFlight    = errors.New("reckon: event admission pending")
	ErrMissingEventID   = errors.New("reckon: event has no provider id")
	ErrMissingEventType = errors.New("reckon: event has no type")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("reckon: subscription not found")
	ErrSubscriptionExists   = errors.New("reckon: subscription already exists")
	ErrTerminalState        = errors.New("reckon: subscription is in a terminal state")

	// Ledger errors
	ErrInsufficientBalance = errors.New("reckon: insufficient balance")
	ErrInvalidAmount       = errors.New("reckon: amount must be positive")
	ErrConflict            = errors.New("reckon: concurrent modification detected")
	ErrBalanceNotFound     = errors.New("reckon: no balance for customer")

	// Usage metering errors
	ErrDuplicateUsage  = errors.New("reckon: duplicate usage report")
	ErrInvalidQuantity = errors.New("reckon: invalid usage quantity")
	ErrPeriodClosed    = errors.New("reckon: billing period already closed")

	// Store errors
	ErrStoreNotReady     = errors.New("reckon: store not ready")
	ErrStoreClosed       = errors.New("reckon: store is closed")
	ErrTransactionFailed = errors.New("reckon: transaction failed")
	ErrMigrationFailed   = errors.New("reckon: migration failed")

	// Provider errors
	ErrProviderNotConfigured = errors.New("reckon: provider not configured")
	ErrProviderUnavailable   = errors.New("reckon: provider unavailable")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("reckon: validation failed for %s: %s", e.Field, e.Message)
}

// IsRejection returns true if the error classifies an inbound event as a
// client/transport rejection — the submitter gets a 400-class response and
// nothing was persisted.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrStaleTimestamp) ||
		errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrMissingEventID) ||
		errors.Is(err, ErrMissingEventType)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrBalanceNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be
// retried. A retried event redelivery is always safe: admission is only
// committed as processed after the domain mutation succeeds.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrProviderUnavailable)
}
