package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seminarbuchung/internal/metrics"
	"seminarbuchung/internal/models"

	"github.com/nats-io/stan.go"
)

// errMalformed marks messages that will never decode; they are acked and dropped
var errMalformed = errors.New("malformed message")

// SessionSyncer refreshes derived read models of a session (search index, catalog cache).
type SessionSyncer interface {
	SyncSession(ctx context.Context, sessionID int64) error
}

type Handlers struct {
	sync SessionSyncer
}

// NewHandlers creates the event handlers. sync may be nil when search is disabled.
func NewHandlers(sync SessionSyncer) *Handlers {
	return &Handlers{sync: sync}
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func (h *Handlers) syncSession(ctx context.Context, sessionID int64) error {
	if h.sync == nil || sessionID == 0 {
		return nil
	}
	if err := h.sync.SyncSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to sync session %d: %w", sessionID, err)
	}
	return nil
}

func (h *Handlers) HandleBookingCreated(ctx context.Context, data []byte) error {
	var event models.BookingCreatedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing booking created event",
		"booking_id", event.BookingID,
		"session_id", event.SessionID,
		"status", event.Status,
		"participants", event.ParticipantCount)

	return h.syncSession(ctx, event.SessionID)
}

func (h *Handlers) HandleBookingPaid(ctx context.Context, data []byte) error {
	var event models.BookingPaidEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing booking paid event",
		"booking_id", event.BookingID,
		"session_id", event.SessionID,
		"payment_reference", event.PaymentReference,
		"total_gross", event.TotalGross,
		"source", event.Source)

	return h.syncSession(ctx, event.SessionID)
}

// HandlePaymentVerificationFailed только логирует: booking остаётся open
func (h *Handlers) HandlePaymentVerificationFailed(_ context.Context, data []byte) error {
	var event models.PaymentVerificationFailedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Warn("Payment verification failed",
		"booking_id", event.BookingID,
		"capture_id", event.CaptureID,
		"reason", event.Reason,
		"source", event.Source)
	return nil
}

func (h *Handlers) HandleSessionTitleChanged(ctx context.Context, data []byte) error {
	var event models.SessionTitleChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing session title changed event", "session_id", event.SessionID, "title", event.Title)
	return h.syncSession(ctx, event.SessionID)
}

// MessageHandler is a subject handler that can be tested without a NATS connection
type MessageHandler func(ctx context.Context, data []byte) error

// process runs fn and reports whether the message should be acked.
// Malformed messages are acked, other failures are left for redelivery.
func process(ctx context.Context, subject string, data []byte, fn MessageHandler) bool {
	start := time.Now()
	defer func() {
		metrics.MessagesProcessingDuration.WithLabelValues(subject).Observe(time.Since(start).Seconds())
	}()

	err := fn(ctx, data)
	if err == nil {
		metrics.MessagesProcessedTotal.WithLabelValues(subject).Inc()
		return true
	}

	metrics.MessagesProcessingFailedTotal.WithLabelValues(subject).Inc()
	if errors.Is(err, errMalformed) {
		slog.Error("Dropping malformed message", "subject", subject, "error", err)
		return true
	}

	slog.Error("Failed to process message, awaiting redelivery", "subject", subject, "error", err)
	return false
}

// Adapt wraps a MessageHandler into a manual-ack stan handler
func Adapt(ctx context.Context, subject string, fn MessageHandler) stan.MsgHandler {
	return func(m *stan.Msg) {
		if !process(ctx, subject, m.Data, fn) {
			return
		}
		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", subject, "sequence", m.Sequence, "error", err)
		}
	}
}
