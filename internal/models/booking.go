package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "seminarbuchung/internal/errors"
)

type BookingStatus string

// Draft only exists while a request is validated; it is never persisted.
const (
	BookingStatusDraft BookingStatus = "draft"
	BookingStatusOpen  BookingStatus = "open"
	BookingStatusPaid  BookingStatus = "paid"
)

type InvoicingType string

const (
	InvoicingPrivate InvoicingType = "private"
	InvoicingCompany InvoicingType = "company"
)

const PaymentMethodPayPal = "paypal"

// Participant is one attendee named on a booking
type Participant struct {
	FirstName       string `json:"firstName" db:"first_name"`
	LastName        string `json:"lastName" db:"last_name"`
	Email           string `json:"email,omitempty" db:"email"`
	Birthdate       string `json:"birthdate,omitempty" db:"birthdate"`
	CandidateNumber string `json:"candidateNumber,omitempty" db:"candidate_number"`
	SpecialNeeds    string `json:"specialNeeds,omitempty" db:"special_needs"`
}

// Pricing is the server-computed price breakdown stored on a booking.
// Per-seat gross already reflects any voucher discount.
type Pricing struct {
	VATApplicable     bool    `json:"vatApplicable" db:"vat_applicable"`
	VATRate           float64 `json:"vatRate" db:"vat_rate"`
	PriceGrossPerSeat float64 `json:"priceGrossPerSeat" db:"price_gross_per_seat"`
	PriceNetPerSeat   float64 `json:"priceNetPerSeat" db:"price_net_per_seat"`
	VATAmountPerSeat  float64 `json:"vatAmountPerSeat" db:"vat_amount_per_seat"`
	TotalGross        float64 `json:"totalGross" db:"total_gross"`
	TotalNet          float64 `json:"totalNet" db:"total_net"`
	TotalVATAmount    float64 `json:"totalVatAmount" db:"total_vat_amount"`
}

// Booking is the root aggregate of a seminar purchase
type Booking struct {
	ID         int64  `json:"id" db:"id"`
	SessionID  int64  `json:"sessionId" db:"session_id"`
	CustomerID *int64 `json:"customerId,omitempty" db:"customer_id"`

	InvoicingType InvoicingType `json:"invoicingType" db:"invoicing_type"`
	FirstName     string        `json:"firstName" db:"first_name"`
	LastName      string        `json:"lastName" db:"last_name"`
	Email         string        `json:"email" db:"email"`
	Phone         string        `json:"phone" db:"phone"`
	CompanyName   string        `json:"companyName" db:"company_name"`
	TaxID         string        `json:"taxId" db:"tax_id"`
	InvoiceEmail  string        `json:"invoiceEmail" db:"invoice_email"`
	Street        string        `json:"street" db:"street"`
	PostalCode    string        `json:"postalCode" db:"postal_code"`
	City          string        `json:"city" db:"city"`
	Country       string        `json:"country" db:"country"`

	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participantCount" db:"participant_count"`
	Pricing

	VoucherCode      string        `json:"voucherCode,omitempty" db:"voucher_code"`
	PaymentMethod    string        `json:"paymentMethod,omitempty" db:"payment_method"`
	PaymentReference string        `json:"paymentReference,omitempty" db:"payment_reference"`
	Status           BookingStatus `json:"status" db:"status"`

	TermsAccepted       bool   `json:"termsAccepted" db:"terms_accepted"`
	PrivacyAcknowledged bool   `json:"privacyAcknowledged" db:"privacy_acknowledged"`
	NewsletterOptIn     bool   `json:"newsletterOptIn" db:"newsletter_opt_in"`
	Notes               string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

var companyRequiredFields = []struct {
	name  string
	value func(b *Booking) string
}{
	{"companyName", func(b *Booking) string { return b.CompanyName }},
	{"invoiceEmail", func(b *Booking) string { return b.InvoiceEmail }},
	{"street", func(b *Booking) string { return b.Street }},
	{"postalCode", func(b *Booking) string { return b.PostalCode }},
	{"city", func(b *Booking) string { return b.City }},
	{"country", func(b *Booking) string { return b.Country }},
}

// SetParticipants replaces the participant list and keeps ParticipantCount in sync.
func (b *Booking) SetParticipants(participants []Participant) {
	b.Participants = participants
	b.ParticipantCount = len(participants)
}

// Validate checks the participant and invoicing invariants.
func (b *Booking) Validate() error {
	if len(b.Participants) < 1 {
		return apperrors.NewValidationError("participants", "at least one participant is required")
	}
	if b.ParticipantCount != len(b.Participants) {
		return apperrors.NewValidationError("participantCount", "does not match the number of participants")
	}
	for i, p := range b.Participants {
		if strings.TrimSpace(p.FirstName) == "" {
			return apperrors.NewValidationError(fmt.Sprintf("participants[%d].firstName", i), "first name is required")
		}
		if strings.TrimSpace(p.LastName) == "" {
			return apperrors.NewValidationError(fmt.Sprintf("participants[%d].lastName", i), "last name is required")
		}
	}

	switch b.InvoicingType {
	case InvoicingPrivate:
	case InvoicingCompany:
		for _, f := range companyRequiredFields {
			if strings.TrimSpace(f.value(b)) == "" {
				return apperrors.NewValidationError(f.name, "a required company field is missing")
			}
		}
	default:
		return apperrors.NewValidationError("invoicingType", fmt.Sprintf("unknown invoicing type %q", b.InvoicingType))
	}

	return nil
}

// CustomerEmail is the address used for customer deduplication.
func (b *Booking) CustomerEmail() string {
	if b.InvoicingType == InvoicingCompany {
		if email := strings.TrimSpace(b.InvoiceEmail); email != "" {
			return email
		}
	}
	return strings.TrimSpace(b.Email)
}

// CanTransition reports whether the status machine allows moving to next.
func (b *Booking) CanTransition(next BookingStatus) bool {
	switch b.Status {
	case BookingStatusDraft:
		return next == BookingStatusOpen
	case BookingStatusOpen:
		return next == BookingStatusPaid
	default:
		return false
	}
}

// Open finalizes a draft. Terms must be accepted.
func (b *Booking) Open() error {
	if !b.CanTransition(BookingStatusOpen) {
		return apperrors.NewValidationError("status", fmt.Sprintf("cannot open a %s booking", b.Status))
	}
	if !b.TermsAccepted {
		return apperrors.NewValidationError("termsAccepted", "terms must be accepted")
	}
	if err := b.Validate(); err != nil {
		return err
	}
	b.Status = BookingStatusOpen
	return nil
}

// MarkPaid moves an open booking to paid. It returns false and changes nothing otherwise.
func (b *Booking) MarkPaid(method, reference string) bool {
	if !b.CanTransition(BookingStatusPaid) {
		return false
	}
	b.Status = BookingStatusPaid
	b.PaymentMethod = method
	b.PaymentReference = reference
	return true
}

// IsPaid reports whether the booking reached its terminal state.
func (b *Booking) IsPaid() bool {
	return b.Status == BookingStatusPaid
}
