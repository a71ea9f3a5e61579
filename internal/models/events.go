package models

import "time"

// NATS Event Types
const (
	EventBookingCreated            = "booking.created"
	EventBookingPaid               = "booking.paid"
	EventPaymentVerificationFailed = "payment.verification_failed"
	EventSessionTitleChanged       = "session.title_changed"
)

// BookingCreatedEvent represents a booking creation event
type BookingCreatedEvent struct {
	BookingID        int64         `json:"booking_id"`
	SessionID        int64         `json:"session_id"`
	ParticipantCount int           `json:"participant_count"`
	TotalGross       float64       `json:"total_gross"`
	Status           BookingStatus `json:"status"`
	Timestamp        time.Time     `json:"timestamp"`
}

// BookingPaidEvent is published once per open to paid transition
type BookingPaidEvent struct {
	BookingID        int64     `json:"booking_id"`
	SessionID        int64     `json:"session_id"`
	PaymentMethod    string    `json:"payment_method"`
	PaymentReference string    `json:"payment_reference"`
	TotalGross       float64   `json:"total_gross"`
	Source           string    `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
}

// PaymentVerificationFailedEvent represents a rejected capture
type PaymentVerificationFailedEvent struct {
	BookingID int64     `json:"booking_id,omitempty"`
	CaptureID string    `json:"capture_id"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionTitleChangedEvent is published after the title autofill wrote a new title
type SessionTitleChangedEvent struct {
	SessionID int64     `json:"session_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}
