package service

import (
	"context"
	"fmt"
	"strings"

	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
)

// placeholder for a missing customer name
const namePlaceholder = "—"

// CustomerLinker finds or creates the customer for a booking's email.
// Lookup and insert are separate statements, so two first bookings with the
// same email racing each other can create two customers.
type CustomerLinker struct {
	customers CustomerStore
	bookings  BookingStore
}

func NewCustomerLinker(customers CustomerStore, bookings BookingStore) *CustomerLinker {
	return &CustomerLinker{customers: customers, bookings: bookings}
}

// Link attaches booking to a customer. Bookings without email or already linked are skipped.
func (l *CustomerLinker) Link(ctx context.Context, booking *models.Booking) error {
	if booking.CustomerID != nil {
		return nil
	}

	email := booking.CustomerEmail()
	if email == "" {
		return nil
	}

	customer, err := l.customers.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find customer: %w", err)
	}

	if customer == nil {
		customer = newCustomerFromBooking(booking, email)
		if err := l.customers.Create(ctx, customer); err != nil {
			return fmt.Errorf("failed to create customer: %w", err)
		}
		logger.WithContext(ctx).Info("Customer created", "customer_id", customer.ID, "booking_id", booking.ID)
	}

	if err := l.bookings.LinkCustomer(ctx, booking.ID, customer.ID); err != nil {
		return fmt.Errorf("failed to link customer: %w", err)
	}

	id := customer.ID
	booking.CustomerID = &id
	return nil
}

func newCustomerFromBooking(b *models.Booking, email string) *models.Customer {
	firstName := strings.TrimSpace(b.FirstName)
	if firstName == "" {
		firstName = namePlaceholder
	}

	lastName := strings.TrimSpace(b.LastName)
	if lastName == "" && b.InvoicingType == models.InvoicingCompany {
		lastName = strings.TrimSpace(b.CompanyName)
	}
	if lastName == "" {
		lastName = namePlaceholder
	}

	return &models.Customer{
		FirstName:  firstName,
		LastName:   lastName,
		Email:      email,
		Phone:      b.Phone,
		Street:     b.Street,
		PostalCode: b.PostalCode,
		City:       b.City,
		Country:    b.Country,
	}
}
