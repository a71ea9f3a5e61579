package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"seminarbuchung/internal/external"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/metrics"
	"seminarbuchung/internal/models"
)

const (
	EventTypeCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"

	// PayPal redelivers for up to three days
	processedEventTTL = 72 * time.Hour
)

type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	EventTypeAlt string          `json:"eventType"`
	Resource     json.RawMessage `json:"resource"`
}

func (e webhookEvent) Type() string {
	if e.EventType != "" {
		return e.EventType
	}
	return e.EventTypeAlt
}

type captureResource struct {
	ID        string `json:"id"`
	CaptureID string `json:"capture_id"`
	Amount    struct {
		CurrencyCode    string `json:"currency_code"`
		CurrencyCodeAlt string `json:"currencyCode"`
		Value           string `json:"value"`
		ValueAlt        string `json:"amount"`
	} `json:"amount"`
}

func (r captureResource) captureID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.CaptureID
}

func (r captureResource) currency() string {
	if r.Amount.CurrencyCode != "" {
		return r.Amount.CurrencyCode
	}
	return r.Amount.CurrencyCodeAlt
}

func (r captureResource) value() string {
	if r.Amount.Value != "" {
		return r.Amount.Value
	}
	return r.Amount.ValueAlt
}

// WebhookReconciler turns verified PayPal capture events into paid bookings.
// Every delivery is acknowledged; failures are only logged.
type WebhookReconciler struct {
	gateway   PaymentGateway
	bookings  BookingStore
	ledger    WebhookLedger
	publisher Publisher
}

// NewWebhookReconciler creates the reconciler. ledger may be nil.
func NewWebhookReconciler(gateway PaymentGateway, bookings BookingStore, ledger WebhookLedger, publisher Publisher) *WebhookReconciler {
	return &WebhookReconciler{
		gateway:   gateway,
		bookings:  bookings,
		ledger:    ledger,
		publisher: publisher,
	}
}

// HandleEvent verifies the delivery signature and applies a capture-completed event
func (r *WebhookReconciler) HandleEvent(ctx context.Context, headers external.WebhookHeaders, body []byte) (ack models.WebhookAck) {
	log := logger.WithContext(ctx)
	ack = models.WebhookAck{OK: true}

	defer func() {
		if rec := recover(); rec != nil {
			metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			log.Error("PayPal webhook panic", "panic", rec)
		}
	}()

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeIgnored).Inc()
		log.Warn("PayPal webhook body is not valid JSON", "error", err)
		return ack
	}

	verified, err := r.gateway.VerifyWebhookSignature(ctx, headers, json.RawMessage(body))
	if err != nil {
		log.Warn("PayPal webhook verification error", "event_id", event.ID, "error", err)
	}
	if !verified {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeUnverified).Inc()
		log.Info("PayPal webhook not verified, ignoring", "event_id", event.ID, "event_type", event.Type())
		return ack
	}
	ack.Verified = true

	if r.alreadyProcessed(ctx, event.ID) {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		log.Info("PayPal webhook already processed", "event_id", event.ID)
		return ack
	}

	if event.Type() != EventTypeCaptureCompleted {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeIgnored).Inc()
		log.Debug("PayPal webhook event type ignored", "event_id", event.ID, "event_type", event.Type())
		r.markProcessed(ctx, event.ID)
		return ack
	}

	outcome, err := r.captureCompleted(ctx, event)
	if err != nil {
		// not marked, the redelivery gets another chance
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		log.Error("PayPal webhook processing failed", "event_id", event.ID, "error", err)
		return ack
	}

	metrics.WebhookEventsTotal.WithLabelValues(outcome).Inc()
	r.markProcessed(ctx, event.ID)
	return ack
}

func (r *WebhookReconciler) captureCompleted(ctx context.Context, event webhookEvent) (string, error) {
	log := logger.WithContext(ctx)

	var resource captureResource
	if len(event.Resource) > 0 {
		if err := json.Unmarshal(event.Resource, &resource); err != nil {
			log.Warn("PayPal capture resource malformed", "event_id", event.ID, "error", err)
			return metrics.OutcomeIgnored, nil
		}
	}

	captureID := strings.TrimSpace(resource.captureID())
	if captureID == "" {
		return metrics.OutcomeIgnored, nil
	}

	booking, err := r.bookings.GetByPaymentReference(ctx, captureID)
	if err != nil {
		return "", fmt.Errorf("failed to find booking by capture: %w", err)
	}
	if booking == nil {
		log.Info("No booking for captured payment", "capture_id", captureID)
		return metrics.OutcomeIgnored, nil
	}
	if booking.IsPaid() {
		return metrics.OutcomeAlreadyPaid, nil
	}

	if !strings.EqualFold(resource.currency(), currencyEUR) {
		log.Warn("Currency mismatch for capture", "capture_id", captureID, "currency", resource.currency())
		r.verificationFailed(booking.ID, captureID, "currency mismatch")
		return metrics.OutcomeRejected, nil
	}
	if !AmountMatches(resource.value(), booking.TotalGross) {
		log.Warn("Amount mismatch for capture",
			"capture_id", captureID,
			"booking_id", booking.ID,
			"received", resource.value(),
			"expected", booking.TotalGross)
		r.verificationFailed(booking.ID, captureID, "amount mismatch")
		return metrics.OutcomeRejected, nil
	}

	marked, err := r.bookings.MarkPaid(ctx, booking.ID, models.PaymentMethodPayPal, captureID)
	if err != nil {
		return "", fmt.Errorf("failed to mark booking paid: %w", err)
	}
	if !marked {
		return metrics.OutcomeAlreadyPaid, nil
	}

	booking.MarkPaid(models.PaymentMethodPayPal, captureID)
	log.Info("Booking paid via webhook", "booking_id", booking.ID, "capture_id", captureID)

	if err := r.publisher.Publish(models.EventBookingPaid, paidEvent(booking, sourceWebhook)); err != nil {
		log.Error("Failed to publish booking paid event", "booking_id", booking.ID, "error", err)
	}

	return metrics.OutcomePaid, nil
}

func (r *WebhookReconciler) verificationFailed(bookingID int64, captureID, reason string) {
	event := models.PaymentVerificationFailedEvent{
		BookingID: bookingID,
		CaptureID: captureID,
		Reason:    reason,
		Source:    sourceWebhook,
		Timestamp: time.Now(),
	}
	if err := r.publisher.Publish(models.EventPaymentVerificationFailed, event); err != nil {
		logger.Get().Error("Failed to publish verification failed event", "booking_id", bookingID, "error", err)
	}
}

func (r *WebhookReconciler) alreadyProcessed(ctx context.Context, eventID string) bool {
	if r.ledger == nil || eventID == "" {
		return false
	}
	done, err := r.ledger.WebhookProcessed(ctx, eventID)
	if err != nil {
		logger.WithContext(ctx).Warn("Webhook ledger lookup failed", "event_id", eventID, "error", err)
		return false
	}
	return done
}

func (r *WebhookReconciler) markProcessed(ctx context.Context, eventID string) {
	if r.ledger == nil || eventID == "" {
		return
	}
	if err := r.ledger.MarkWebhookProcessed(ctx, eventID, processedEventTTL); err != nil {
		logger.WithContext(ctx).Warn("Failed to mark webhook processed", "event_id", eventID, "error", err)
	}
}
