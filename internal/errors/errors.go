package errors

import (
	stderrors "errors"
	"fmt"
)

var ErrUnauthorized = stderrors.New("user is not authorized")
var ErrBookingNotFound = stderrors.New("booking not found")

// ErrBookingConflict means the booking changed status between read and write
var ErrBookingConflict = stderrors.New("booking was modified concurrently")

// ValidationError is a client input defect. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PricingError means neither a gross nor a net per-seat amount could be established.
type PricingError struct {
	Reason string
}

func (e *PricingError) Error() string {
	return "pricing failed: " + e.Reason
}

// InvalidPriceError means neither the session nor its course carries a usable price.
type InvalidPriceError struct {
	SessionID int64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("no usable price for session %d", e.SessionID)
}

type SessionNotFoundError struct {
	SessionID int64
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %d not found", e.SessionID)
}

// PaymentVerificationError covers provider failures and status, currency or amount mismatches.
type PaymentVerificationError struct {
	Reason string
	Err    error
}

func (e *PaymentVerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment verification failed: %s: %v", e.Reason, e.Err)
	}
	return "payment verification failed: " + e.Reason
}

func (e *PaymentVerificationError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err should be rejected with a 4xx status.
func IsClientError(err error) bool {
	var (
		validationErr   *ValidationError
		pricingErr      *PricingError
		invalidPriceErr *InvalidPriceError
		notFoundErr     *SessionNotFoundError
		paymentErr      *PaymentVerificationError
	)
	return stderrors.As(err, &validationErr) ||
		stderrors.As(err, &pricingErr) ||
		stderrors.As(err, &invalidPriceErr) ||
		stderrors.As(err, &notFoundErr) ||
		stderrors.As(err, &paymentErr)
}
