package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off", "", "null":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// SessionRef is a session reference normalized from the shapes clients send:
// a bare id (number or numeric string), {"id": n}, or {"connect": [{"id": n}]}.
type SessionRef struct {
	ID    int64
	Valid bool
}

func (r *SessionRef) UnmarshalJSON(data []byte) error {
	*r = SessionRef{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			ID      json.RawMessage `json:"id"`
			Connect json.RawMessage `json:"connect"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("invalid session reference: %w", err)
		}
		if len(obj.ID) > 0 {
			return r.UnmarshalJSON(obj.ID)
		}
		if len(obj.Connect) > 0 {
			return r.UnmarshalJSON(obj.Connect)
		}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("invalid session reference: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		return r.UnmarshalJSON(items[0])
	}

	str := strings.Trim(string(data), `"`)
	id, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil || id <= 0 {
		// unusable ids are treated as absent, the caller reports the missing session
		return nil
	}
	r.ID = id
	r.Valid = true
	return nil
}

// CreateBookingRequest - POST /public/bookings
type CreateBookingRequest struct {
	SessionID SessionRef `json:"sessionId"`
	Session   SessionRef `json:"session"`

	PayPalOrderID    string `json:"paypalOrderId"`
	PayPalCaptureID  string `json:"paypalCaptureId"`
	PaymentReference string `json:"paymentReference"`
	PaymentMethod    string `json:"paymentMethod"`

	InvoicingType string `json:"invoicingType"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	CompanyName   string `json:"companyName"`
	TaxID         string `json:"taxId"`
	InvoiceEmail  string `json:"invoiceEmail"`
	Street        string `json:"street"`
	PostalCode    string `json:"postalCode"`
	City          string `json:"city"`
	Country       string `json:"country"`

	Participants []Participant `json:"participants"`
	VoucherCode  string        `json:"voucherCode"`

	TermsAccepted       FlexibleBool `json:"termsAccepted"`
	PrivacyAcknowledged FlexibleBool `json:"privacyAcknowledged"`
	NewsletterOptIn     FlexibleBool `json:"newsletterOptIn"`
	Notes               string       `json:"notes"`
}

// SessionRef returns the first usable session reference of the request.
func (r *CreateBookingRequest) SessionRef() (int64, bool) {
	if r.SessionID.Valid {
		return r.SessionID.ID, true
	}
	if r.Session.Valid {
		return r.Session.ID, true
	}
	return 0, false
}

// CreateBookingResponse - ответ при создании бронирования
type CreateBookingResponse struct {
	ID               int64         `json:"id"`
	SessionID        int64         `json:"sessionId"`
	ParticipantCount int           `json:"participantCount"`
	Status           BookingStatus `json:"status"`
	Pricing
}

// UpdateBookingRequest - PATCH /admin/bookings/:id
// Nil fields are left unchanged. Status is not an input.
type UpdateBookingRequest struct {
	Participants  *[]Participant `json:"participants"`
	InvoicingType *string        `json:"invoicingType"`
	FirstName     *string        `json:"firstName"`
	LastName      *string        `json:"lastName"`
	Email         *string        `json:"email"`
	Phone         *string        `json:"phone"`
	CompanyName   *string        `json:"companyName"`
	TaxID         *string        `json:"taxId"`
	InvoiceEmail  *string        `json:"invoiceEmail"`
	Street        *string        `json:"street"`
	PostalCode    *string        `json:"postalCode"`
	City          *string        `json:"city"`
	Country       *string        `json:"country"`
	Notes         *string        `json:"notes"`

	VATApplicable *bool    `json:"vatApplicable"`
	PriceGross    *float64 `json:"priceGross"`
	PriceNet      *float64 `json:"priceNet"`
}

// ChangesPricing reports whether the update touches a pricing-relevant field.
func (r *UpdateBookingRequest) ChangesPricing() bool {
	return r.Participants != nil || r.InvoicingType != nil || r.VATApplicable != nil ||
		r.PriceGross != nil || r.PriceNet != nil
}

// PublicBooking is the PII-free projection served to anonymous callers
type PublicBooking struct {
	ID               int64         `json:"id"`
	Status           BookingStatus `json:"status"`
	PaymentMethod    string        `json:"paymentMethod,omitempty"`
	ParticipantCount int           `json:"participantCount"`
	TotalGross       float64       `json:"totalGross"`
	TotalNet         float64       `json:"totalNet"`
	TotalVAT         float64       `json:"totalVat"`
}

// NewPublicBooking strips personal data from a booking.
func NewPublicBooking(b *Booking) PublicBooking {
	return PublicBooking{
		ID:               b.ID,
		Status:           b.Status,
		PaymentMethod:    b.PaymentMethod,
		ParticipantCount: b.ParticipantCount,
		TotalGross:       b.TotalGross,
		TotalNet:         b.TotalNet,
		TotalVAT:         b.TotalVATAmount,
	}
}

// VoucherValidateRequest - POST /public/vouchers/validate
type VoucherValidateRequest struct {
	SessionID        SessionRef `json:"sessionId"`
	ParticipantCount int        `json:"participantCount"`
	VoucherCode      string     `json:"voucherCode"`
}

type VoucherAmounts struct {
	PricePerSeatGross float64 `json:"pricePerSeatGross"`
	TotalGross        float64 `json:"totalGross"`
}

type VoucherDiscount struct {
	Kind        VoucherKind `json:"kind,omitempty"`
	Value       *float64    `json:"value,omitempty"`
	AmountGross float64     `json:"amountGross"`
}

// VoucherValidateResponse is always served with 200
type VoucherValidateResponse struct {
	Valid    bool            `json:"valid"`
	Reason   string          `json:"reason,omitempty"`
	Original VoucherAmounts  `json:"original"`
	Discount VoucherDiscount `json:"discount"`
	Total    VoucherAmounts  `json:"total"`
}

// WebhookAck is the only body ever returned to the payment provider
type WebhookAck struct {
	OK       bool `json:"ok"`
	Verified bool `json:"verified"`
}

// SeminarWithSessions - семинар с запланированными терминами
type SeminarWithSessions struct {
	Course
	Sessions []Session `json:"sessions"`
}
