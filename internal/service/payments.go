package service

import (
	"context"
	"math"
	"strconv"
	"strings"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
)

const (
	captureStatusCompleted = "COMPLETED"
	currencyEUR            = "EUR"
	// captures must be less than one cent off the expected total
	amountTolerance = 0.01
)

// OrderContext is the booking context PayPal carries in custom_id as
// "<slug>|<sessionId>|<participantCount>". Zero means the part was unusable.
type OrderContext struct {
	Slug             string
	SessionID        int64
	ParticipantCount int
}

// ParseCustomID splits a custom_id; non-numeric or non-positive parts are ignored
func ParseCustomID(customID string) OrderContext {
	var oc OrderContext
	parts := strings.Split(customID, "|")
	if len(parts) > 0 {
		oc.Slug = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		if id, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil && id > 0 {
			oc.SessionID = id
		}
	}
	if len(parts) > 2 {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[2])); err == nil && n > 0 {
			oc.ParticipantCount = n
		}
	}
	return oc
}

// PaymentVerifier checks PayPal captures against amounts computed on the server.
// It never retries and fails closed.
type PaymentVerifier struct {
	gateway PaymentGateway
}

func NewPaymentVerifier(gateway PaymentGateway) *PaymentVerifier {
	return &PaymentVerifier{gateway: gateway}
}

func verificationError(reason string, err error) error {
	return &apperrors.PaymentVerificationError{Reason: reason, Err: err}
}

// VerifyCapture requires a COMPLETED EUR capture less than one cent off expected
func (v *PaymentVerifier) VerifyCapture(ctx context.Context, captureID string, expected float64) error {
	captureID = strings.TrimSpace(captureID)
	if captureID == "" {
		return verificationError("missing capture id", nil)
	}

	capture, err := v.gateway.GetCapture(ctx, captureID)
	if err != nil {
		return verificationError("provider error", err)
	}

	if !strings.EqualFold(capture.Status, captureStatusCompleted) {
		return verificationError("capture not completed", nil)
	}
	if !strings.EqualFold(capture.Amount.CurrencyCode, currencyEUR) {
		return verificationError("currency mismatch", nil)
	}
	if !AmountMatches(capture.Amount.Value, expected) {
		logger.WithContext(ctx).Warn("Capture amount mismatch",
			"capture_id", captureID,
			"received", capture.Amount.Value,
			"expected", expected)
		return verificationError("amount mismatch", nil)
	}

	return nil
}

// VerifyBookingCapture checks the booking's payment reference against its stored total
func (v *PaymentVerifier) VerifyBookingCapture(ctx context.Context, booking *models.Booking) error {
	return v.VerifyCapture(ctx, booking.PaymentReference, booking.TotalGross)
}

// ResolveOrder reads the booking context of a PayPal order
func (v *PaymentVerifier) ResolveOrder(ctx context.Context, orderID string) (OrderContext, error) {
	order, err := v.gateway.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return OrderContext{}, verificationError("order lookup failed", err)
	}

	customID := order.CustomID()
	logger.WithContext(ctx).Info("Resolved PayPal order", "order_id", orderID, "custom_id", customID)

	return ParseCustomID(customID), nil
}

// AmountMatches parses a provider amount and compares it against expected
func AmountMatches(value string, expected float64) bool {
	received, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(received) || math.IsInf(received, 0) {
		return false
	}
	// strictly under a cent: a 238.01 capture for a 238.00 booking is a mismatch
	// (TestAmountMatches), so "<= 0.01" would be wrong here. The epsilon absorbs
	// float error in 238.01 - 238.00.
	return math.Abs(received-expected) < amountTolerance-1e-9
}
