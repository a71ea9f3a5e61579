package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/metrics"
	"seminarbuchung/internal/models"
)

// maxReconcileAttempts stops re-checking a capture that keeps failing
// verification; about four hours at the default interval. The webhook can
// still confirm such a booking.
const maxReconcileAttempts = 48

// ReconcileResult counts what one reconciliation pass did
type ReconcileResult struct {
	Checked  int
	Paid     int
	Rejected int
	Failed   int
}

// ReconcileOpenPayments re-verifies open bookings that carry a payment
// reference and were created before olderThan. A capture that checks out
// against the stored total moves the booking to paid; any other booking is
// moved to the back of the queue so one bad capture cannot hold a batch.
func (s *BookingService) ReconcileOpenPayments(ctx context.Context, olderThan time.Time, limit int) (ReconcileResult, error) {
	var result ReconcileResult

	bookings, err := s.bookings.ListOpenWithReference(ctx, olderThan, maxReconcileAttempts, limit)
	if err != nil {
		return result, fmt.Errorf("failed to list open bookings: %w", err)
	}

	for i := range bookings {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		outcome := s.reconcileOne(ctx, &bookings[i])
		metrics.PaymentVerificationsTotal.WithLabelValues(sourceReconcile, outcome).Inc()
		if outcome == metrics.OutcomeRejected || outcome == metrics.OutcomeError {
			s.recordAttempt(ctx, bookings[i].ID, outcome == metrics.OutcomeRejected)
		}
		switch outcome {
		case metrics.OutcomePaid:
			result.Paid++
		case metrics.OutcomeRejected:
			result.Rejected++
		case metrics.OutcomeError:
			result.Failed++
		}
	}

	return result, nil
}

func (s *BookingService) reconcileOne(ctx context.Context, booking *models.Booking) string {
	log := logger.WithContext(ctx).With("booking_id", booking.ID, "capture_id", booking.PaymentReference)

	if err := s.verifier.VerifyBookingCapture(ctx, booking); err != nil {
		var verr *apperrors.PaymentVerificationError
		if errors.As(err, &verr) && verr.Err != nil {
			// provider unreachable or capture unknown, try again next pass
			log.Warn("Reconciliation lookup failed", "error", err)
			return metrics.OutcomeError
		}
		log.Info("Reconciliation left booking open", "reason", err.Error())
		return metrics.OutcomeRejected
	}

	marked, err := s.bookings.MarkPaid(ctx, booking.ID, models.PaymentMethodPayPal, booking.PaymentReference)
	if err != nil {
		log.Error("Failed to mark booking paid", "error", err)
		return metrics.OutcomeError
	}
	if !marked {
		return metrics.OutcomeAlreadyPaid
	}

	booking.MarkPaid(models.PaymentMethodPayPal, booking.PaymentReference)
	log.Info("Booking paid via reconciliation")
	s.publish(ctx, models.EventBookingPaid, paidEvent(booking, sourceReconcile))

	return metrics.OutcomePaid
}

func (s *BookingService) recordAttempt(ctx context.Context, id int64, rejected bool) {
	if err := s.bookings.RecordReconcileAttempt(ctx, id, rejected); err != nil {
		logger.WithContext(ctx).Warn("Failed to record reconciliation attempt", "booking_id", id, "error", err)
	}
}
