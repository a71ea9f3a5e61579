package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"seminarbuchung/internal/database"
	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/models"
)

const paymentReferenceIndex = "bookings_payment_reference_idx"

const bookingColumns = `
		id, session_id, customer_id, invoicing_type,
		first_name, last_name, email, phone, company_name, tax_id, invoice_email,
		street, postal_code, city, country,
		participant_count, vat_applicable, vat_rate,
		price_gross_per_seat, price_net_per_seat, vat_amount_per_seat,
		total_gross, total_net, total_vat_amount,
		voucher_code, payment_method, COALESCE(payment_reference, ''), status,
		terms_accepted, privacy_acknowledged, newsletter_opt_in, notes,
		created_at, updated_at`

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var customerID sql.NullInt64
	err := row.Scan(
		&b.ID, &b.SessionID, &customerID, &b.InvoicingType,
		&b.FirstName, &b.LastName, &b.Email, &b.Phone, &b.CompanyName, &b.TaxID, &b.InvoiceEmail,
		&b.Street, &b.PostalCode, &b.City, &b.Country,
		&b.ParticipantCount, &b.VATApplicable, &b.VATRate,
		&b.PriceGrossPerSeat, &b.PriceNetPerSeat, &b.VATAmountPerSeat,
		&b.TotalGross, &b.TotalNet, &b.TotalVATAmount,
		&b.VoucherCode, &b.PaymentMethod, &b.PaymentReference, &b.Status,
		&b.TermsAccepted, &b.PrivacyAcknowledged, &b.NewsletterOptIn, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		id := customerID.Int64
		b.CustomerID = &id
	}
	return b, nil
}

// nullIfEmpty keeps empty payment references out of the partial unique index
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func referenceConflict(err error) error {
	if database.IsUniqueViolation(err, paymentReferenceIndex) {
		return apperrors.NewValidationError("paymentReference", "payment reference already used")
	}
	return err
}

// Create inserts the booking and its participants in one transaction
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			session_id, customer_id, invoicing_type,
			first_name, last_name, email, phone, company_name, tax_id, invoice_email,
			street, postal_code, city, country,
			participant_count, vat_applicable, vat_rate,
			price_gross_per_seat, price_net_per_seat, vat_amount_per_seat,
			total_gross, total_net, total_vat_amount,
			voucher_code, payment_method, payment_reference, status,
			terms_accepted, privacy_acknowledged, newsletter_opt_in, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
		RETURNING id, created_at, updated_at`

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			booking.SessionID, booking.CustomerID, booking.InvoicingType,
			booking.FirstName, booking.LastName, booking.Email, booking.Phone,
			booking.CompanyName, booking.TaxID, booking.InvoiceEmail,
			booking.Street, booking.PostalCode, booking.City, booking.Country,
			booking.ParticipantCount, booking.VATApplicable, booking.VATRate,
			booking.PriceGrossPerSeat, booking.PriceNetPerSeat, booking.VATAmountPerSeat,
			booking.TotalGross, booking.TotalNet, booking.TotalVATAmount,
			booking.VoucherCode, booking.PaymentMethod, nullIfEmpty(booking.PaymentReference), booking.Status,
			booking.TermsAccepted, booking.PrivacyAcknowledged, booking.NewsletterOptIn, booking.Notes,
		).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			return err
		}
		return insertParticipants(ctx, tx, booking.ID, booking.Participants)
	})

	return referenceConflict(err)
}

func insertParticipants(ctx context.Context, tx *sql.Tx, bookingID int64, participants []models.Participant) error {
	query := `
		INSERT INTO booking_participants
			(booking_id, position, first_name, last_name, email, birthdate, candidate_number, special_needs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, p := range participants {
		_, err := tx.ExecContext(ctx, query,
			bookingID, i, p.FirstName, p.LastName, p.Email, p.Birthdate, p.CandidateNumber, p.SpecialNeeds)
		if err != nil {
			return fmt.Errorf("failed to insert participant %d: %w", i, err)
		}
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	booking.Participants, err = r.participants(ctx, id)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// GetByPaymentReference finds the booking a capture id was recorded on
func (r *BookingRepository) GetByPaymentReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE payment_reference = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, reference))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return booking, err
}

func (r *BookingRepository) participants(ctx context.Context, bookingID int64) ([]models.Participant, error) {
	query := `
		SELECT first_name, last_name, email, birthdate, candidate_number, special_needs
		FROM booking_participants
		WHERE booking_id = $1
		ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.FirstName, &p.LastName, &p.Email, &p.Birthdate, &p.CandidateNumber, &p.SpecialNeeds); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// Update rewrites contact, participant and pricing fields of a booking whose
// status is still booking.Status. Status and payment fields belong to the
// payment paths and are never written here. ErrBookingConflict is returned when
// the row moved on since it was read.
func (r *BookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	query := `
		UPDATE bookings
		SET invoicing_type = $1, first_name = $2, last_name = $3, email = $4, phone = $5,
		    company_name = $6, tax_id = $7, invoice_email = $8,
		    street = $9, postal_code = $10, city = $11, country = $12,
		    participant_count = $13, vat_applicable = $14, vat_rate = $15,
		    price_gross_per_seat = $16, price_net_per_seat = $17, vat_amount_per_seat = $18,
		    total_gross = $19, total_net = $20, total_vat_amount = $21,
		    voucher_code = $22,
		    terms_accepted = $23, privacy_acknowledged = $24, newsletter_opt_in = $25, notes = $26,
		    updated_at = NOW()
		WHERE id = $27 AND status = $28
		RETURNING updated_at`

	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			booking.InvoicingType, booking.FirstName, booking.LastName, booking.Email, booking.Phone,
			booking.CompanyName, booking.TaxID, booking.InvoiceEmail,
			booking.Street, booking.PostalCode, booking.City, booking.Country,
			booking.ParticipantCount, booking.VATApplicable, booking.VATRate,
			booking.PriceGrossPerSeat, booking.PriceNetPerSeat, booking.VATAmountPerSeat,
			booking.TotalGross, booking.TotalNet, booking.TotalVATAmount,
			booking.VoucherCode,
			booking.TermsAccepted, booking.PrivacyAcknowledged, booking.NewsletterOptIn, booking.Notes,
			booking.ID, booking.Status,
		).Scan(&booking.UpdatedAt)
		if err == sql.ErrNoRows {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, booking.ID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return apperrors.ErrBookingConflict
			}
			return apperrors.ErrBookingNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_participants WHERE booking_id = $1`, booking.ID); err != nil {
			return fmt.Errorf("failed to clear participants: %w", err)
		}
		return insertParticipants(ctx, tx, booking.ID, booking.Participants)
	})
}

// MarkPaid performs the open -> paid transition. It reports false when the
// row was not open, so concurrent confirmations transition at most once.
func (r *BookingRepository) MarkPaid(ctx context.Context, id int64, method, reference string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'paid', payment_method = $2, payment_reference = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'open'`

	result, err := r.db.ExecContext(ctx, query, id, method, nullIfEmpty(reference))
	if err != nil {
		return false, referenceConflict(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (r *BookingRepository) LinkCustomer(ctx context.Context, bookingID, customerID int64) error {
	query := `UPDATE bookings SET customer_id = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, bookingID, customerID)
	return err
}

// ListOpenWithReference returns open bookings carrying a payment reference
// created before olderThan with fewer than maxAttempts failed reconciliations.
// Never-checked bookings come first, then the ones checked longest ago.
func (r *BookingRepository) ListOpenWithReference(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.Booking, error) {
	query := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE status = 'open' AND payment_reference IS NOT NULL AND created_at < $1
		  AND reconcile_attempts < $2
		ORDER BY last_reconciled_at NULLS FIRST, created_at
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, olderThan, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}

// RecordReconcileAttempt moves the booking to the back of the reconciliation
// queue. Only rejected captures count towards the attempt limit.
func (r *BookingRepository) RecordReconcileAttempt(ctx context.Context, id int64, rejected bool) error {
	query := `
		UPDATE bookings
		SET reconcile_attempts = reconcile_attempts + CASE WHEN $2 THEN 1 ELSE 0 END,
		    last_reconciled_at = NOW()
		WHERE id = $1 AND status = 'open'`

	_, err := r.db.ExecContext(ctx, query, id, rejected)
	return err
}
