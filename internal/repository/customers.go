package repository

import (
	"context"
	"database/sql"

	"seminarbuchung/internal/database"
	"seminarbuchung/internal/models"
)

type CustomerRepository struct {
	db *database.DB
}

func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindByEmail returns the oldest customer with this email, or nil, nil
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	c := &models.Customer{}
	query := `
		SELECT id, first_name, last_name, email, phone, street, postal_code, city, country, created_at
		FROM customers
		WHERE email = $1
		ORDER BY id
		LIMIT 1`

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.Street, &c.PostalCode, &c.City, &c.Country, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return c, err
}

func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (first_name, last_name, email, phone, street, postal_code, city, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Street, c.PostalCode, c.City, c.Country,
	).Scan(&c.ID, &c.CreatedAt)
}
