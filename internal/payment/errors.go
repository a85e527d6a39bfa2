package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned for amounts that are zero or negative.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrRefundExceedsCaptured is returned when a refund is larger than what is left to refund.
	ErrRefundExceedsCaptured = errors.New("refund amount exceeds captured amount")
	// ErrNotRefundable is returned for payments that are not confirmed or fully refunded.
	ErrNotRefundable = errors.New("payment is not refundable")
	// ErrInvalidTransition is returned when the payment is not in a state the operation can start from.
	ErrInvalidTransition = errors.New("invalid payment status transition")
	// ErrAmountMismatch is returned when the provider reports a different amount or currency.
	ErrAmountMismatch = errors.New("provider amount does not match payment")
	// ErrPaymentNotFound is returned when no payment matches.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrMissingReference is returned when a provider operation needs a reference the payment lacks.
	ErrMissingReference = errors.New("payment has no gateway reference")
	// ErrReferenceMismatch is returned when a provider charge belongs to another payment.
	ErrReferenceMismatch = errors.New("provider charge belongs to another payment")
	// ErrFulfillmentPending is returned when a payment was confirmed but its confirm hook failed.
	// The hook runs again on the next confirm or reconcile of the payment.
	ErrFulfillmentPending = errors.New("payment confirmed, fulfillment pending")
	// ErrUnknownGateway is returned for a gateway name without a registered factory.
	ErrUnknownGateway = errors.New("unknown payment gateway")
	// ErrGatewayUnavailable is returned when a gateway could not be built, usually missing credentials.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrMissingCredentials is returned by factories when keys are not configured.
	ErrMissingCredentials = errors.New("payment gateway credentials missing")
)

// GatewayError wraps a failed provider call.
type GatewayError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
