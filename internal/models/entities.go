package models

import (
	"time"
)

// Course represents a seminar in the catalog
type Course struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Slug             string    `json:"slug" db:"slug"`
	ShortDescription *string   `json:"shortDescription,omitempty" db:"short_description"`
	Description      *string   `json:"description,omitempty" db:"description"`
	Info             *string   `json:"info,omitempty" db:"info"`
	DefaultPrice     *float64  `json:"defaultPrice,omitempty" db:"default_price"`
	VATApplicable    bool      `json:"vatApplicable" db:"vat_applicable"`
	Active           bool      `json:"active" db:"active"`
	CreatedAt        time.Time `json:"-" db:"created_at"`
	UpdatedAt        time.Time `json:"-" db:"updated_at"`
}

// Location represents the place a session is held
type Location struct {
	ID       int64  `json:"id" db:"id"`
	Standort string `json:"standort,omitempty" db:"standort"`
	Type     string `json:"type,omitempty" db:"type"`
	Venue    string `json:"venue,omitempty" db:"venue"`
	City     string `json:"city,omitempty" db:"city"`
}

// DisplayName picks the first non-empty of standort, venue and city.
func (l *Location) DisplayName() string {
	if l == nil {
		return ""
	}
	for _, name := range []string{l.Standort, l.Venue, l.City} {
		if name != "" {
			return name
		}
	}
	return ""
}

const SessionStatusPlanned = "planned"

// SessionDay is one day of a session. Date is YYYY-MM-DD, times are HH:MM:SS.
type SessionDay struct {
	Date      string `json:"date" db:"day_date"`
	StartTime string `json:"startTime,omitempty" db:"start_time"`
	EndTime   string `json:"endTime,omitempty" db:"end_time"`
}

// Session represents a scheduled occurrence of a course
type Session struct {
	ID         int64        `json:"id" db:"id"`
	CourseID   int64        `json:"courseId" db:"course_id"`
	Title      string       `json:"title" db:"title"`
	Price      *float64     `json:"price,omitempty" db:"price"`
	Capacity   int          `json:"capacity" db:"capacity"`
	Status     string       `json:"status" db:"status"`
	LocationID *int64       `json:"-" db:"location_id"`
	Location   *Location    `json:"location,omitempty"`
	Days       []SessionDay `json:"days"`
	CreatedAt  time.Time    `json:"-" db:"created_at"`
	UpdatedAt  time.Time    `json:"-" db:"updated_at"`
}

type VoucherKind string

const (
	VoucherKindFixedAmount VoucherKind = "fixed-amount"
	VoucherKindPercentage  VoucherKind = "percentage"
)

// Voucher is a discount code. ValidFrom and ValidTo are YYYY-MM-DD.
// UsageLimit is stored but no code path counts redemptions against it.
type Voucher struct {
	ID         int64       `json:"id" db:"id"`
	Code       string      `json:"code" db:"code"`
	Kind       VoucherKind `json:"kind" db:"kind"`
	Value      float64     `json:"value" db:"value"`
	Active     bool        `json:"active" db:"active"`
	ValidFrom  *string     `json:"validFrom,omitempty" db:"valid_from"`
	ValidTo    *string     `json:"validTo,omitempty" db:"valid_to"`
	UsageLimit *int        `json:"usageLimit,omitempty" db:"usage_limit"`
}

// Customer represents a buyer, deduplicated by email
type Customer struct {
	ID         int64     `json:"id" db:"id"`
	FirstName  string    `json:"firstName" db:"first_name"`
	LastName   string    `json:"lastName" db:"last_name"`
	Email      string    `json:"email" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	Street     string    `json:"street,omitempty" db:"street"`
	PostalCode string    `json:"postalCode,omitempty" db:"postal_code"`
	City       string    `json:"city,omitempty" db:"city"`
	Country    string    `json:"country,omitempty" db:"country"`
	CreatedAt  time.Time `json:"-" db:"created_at"`
}
