package repository

import (
	"seminarbuchung/internal/database"
)

type Repositories struct {
	Bookings  *BookingRepository
	Catalog   *CatalogRepository
	Vouchers  *VoucherRepository
	Customers *CustomerRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Bookings:  NewBookingRepository(db),
		Catalog:   NewCatalogRepository(db),
		Vouchers:  NewVoucherRepository(db),
		Customers: NewCustomerRepository(db),
	}
}
