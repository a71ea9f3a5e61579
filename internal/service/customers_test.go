package service

import (
	"context"
	"testing"

	"seminarbuchung/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkCreatesCustomerOnce(t *testing.T) {
	customers := newFakeCustomers()
	bookings := newFakeBookings()
	linker := NewCustomerLinker(customers, bookings)

	first := bookings.put(&models.Booking{InvoicingType: models.InvoicingPrivate, FirstName: "Anna", LastName: "Schmidt", Email: "anna@example.de", City: "Hamburg"})
	second := bookings.put(&models.Booking{InvoicingType: models.InvoicingPrivate, FirstName: "Anna", Email: "anna@example.de"})

	require.NoError(t, linker.Link(context.Background(), first))
	require.NoError(t, linker.Link(context.Background(), second))

	require.Len(t, customers.created, 1)
	assert.Equal(t, "Hamburg", customers.created[0].City)
	assert.Equal(t, bookings.links[first.ID], bookings.links[second.ID])
	require.NotNil(t, second.CustomerID)
}

func TestLinkCompanyUsesInvoiceEmail(t *testing.T) {
	customers := newFakeCustomers()
	bookings := newFakeBookings()
	linker := NewCustomerLinker(customers, bookings)

	b := bookings.put(&models.Booking{
		InvoicingType: models.InvoicingCompany,
		CompanyName:   "Weinhandel GmbH",
		Email:         "kontakt@weinhandel.de",
		InvoiceEmail:  "rechnung@weinhandel.de",
	})
	require.NoError(t, linker.Link(context.Background(), b))

	require.Len(t, customers.created, 1)
	c := customers.created[0]
	assert.Equal(t, "rechnung@weinhandel.de", c.Email)
	assert.Equal(t, namePlaceholder, c.FirstName)
	assert.Equal(t, "Weinhandel GmbH", c.LastName)
}

func TestLinkSkips(t *testing.T) {
	customers := newFakeCustomers()
	bookings := newFakeBookings()
	linker := NewCustomerLinker(customers, bookings)

	require.NoError(t, linker.Link(context.Background(), &models.Booking{ID: 1, InvoicingType: models.InvoicingPrivate}))

	linked := int64(7)
	require.NoError(t, linker.Link(context.Background(), &models.Booking{ID: 2, Email: "a@b.de", CustomerID: &linked}))

	assert.Zero(t, customers.lookups)
	assert.Empty(t, bookings.links)
}

func TestNewCustomerPlaceholders(t *testing.T) {
	c := newCustomerFromBooking(&models.Booking{InvoicingType: models.InvoicingPrivate}, "x@y.de")
	assert.Equal(t, namePlaceholder, c.FirstName)
	assert.Equal(t, namePlaceholder, c.LastName)

	c = newCustomerFromBooking(&models.Booking{InvoicingType: models.InvoicingPrivate, CompanyName: "Ignored"}, "x@y.de")
	assert.Equal(t, namePlaceholder, c.LastName)
}
