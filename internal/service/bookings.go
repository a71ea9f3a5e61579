package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/metrics"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/pricing"
)

const (
	sourceCreate    = "create"
	sourceWebhook   = "webhook"
	sourceReconcile = "reconcile"
)

type BookingService struct {
	bookings  BookingStore
	quoter    *pricing.Quoter
	verifier  *PaymentVerifier
	linker    *CustomerLinker
	titler    *SessionTitler
	publisher Publisher
}

func NewBookingService(bookings BookingStore, quoter *pricing.Quoter, verifier *PaymentVerifier, linker *CustomerLinker, titler *SessionTitler, publisher Publisher) *BookingService {
	return &BookingService{
		bookings:  bookings,
		quoter:    quoter,
		verifier:  verifier,
		linker:    linker,
		titler:    titler,
		publisher: publisher,
	}
}

// Create prices, verifies and stores a booking. Customer linkage, title
// autofill and event publishing run after the insert and cannot fail it.
func (s *BookingService) Create(ctx context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	log := logger.WithContext(ctx)

	sessionID, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	booking := newDraftBooking(req, sessionID)
	if err := booking.Open(); err != nil {
		return nil, err
	}

	// client price fields are never read here
	quote, err := s.quoter.Quote(ctx, pricing.QuoteInput{
		SessionID:        sessionID,
		ParticipantCount: booking.ParticipantCount,
		VoucherCode:      req.VoucherCode,
	})
	if err != nil {
		return nil, err
	}
	booking.Pricing = quote.Final.Pricing()
	if quote.Voucher.Valid {
		booking.VoucherCode = quote.Voucher.Voucher.Code
	}

	captureID := strings.TrimSpace(req.PayPalCaptureID)
	switch {
	case captureID != "":
		if err := s.verifier.VerifyCapture(ctx, captureID, quote.ExpectedTotal()); err != nil {
			metrics.PaymentVerificationsTotal.WithLabelValues(sourceCreate, metrics.OutcomeRejected).Inc()
			log.Warn("Capture verification failed at booking creation",
				"session_id", sessionID, "capture_id", captureID, "error", err)
			s.publish(ctx, models.EventPaymentVerificationFailed, models.PaymentVerificationFailedEvent{
				CaptureID: captureID,
				Reason:    err.Error(),
				Source:    sourceCreate,
				Timestamp: time.Now(),
			})
			return nil, err
		}
		metrics.PaymentVerificationsTotal.WithLabelValues(sourceCreate, metrics.OutcomePaid).Inc()
		booking.MarkPaid(models.PaymentMethodPayPal, captureID)
	case strings.TrimSpace(req.PaymentReference) != "":
		booking.PaymentReference = strings.TrimSpace(req.PaymentReference)
		booking.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if apperrors.IsClientError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	metrics.BookingsCreatedTotal.WithLabelValues(string(booking.Status)).Inc()
	log.Info("Booking created",
		"booking_id", booking.ID,
		"session_id", booking.SessionID,
		"participant_count", booking.ParticipantCount,
		"total_gross", booking.TotalGross,
		"status", booking.Status)

	runHooks(ctx, booking.ID, s.creationHooks(booking))

	return &models.CreateBookingResponse{
		ID:               booking.ID,
		SessionID:        booking.SessionID,
		ParticipantCount: booking.ParticipantCount,
		Status:           booking.Status,
		Pricing:          booking.Pricing,
	}, nil
}

// resolveSession reads the session from the request or, failing that, from the PayPal order
func (s *BookingService) resolveSession(ctx context.Context, req *models.CreateBookingRequest) (int64, error) {
	if id, ok := req.SessionRef(); ok {
		return id, nil
	}

	orderID := strings.TrimSpace(req.PayPalOrderID)
	if orderID == "" {
		return 0, apperrors.NewValidationError("sessionId", "a session reference is required")
	}

	oc, err := s.verifier.ResolveOrder(ctx, orderID)
	if err != nil {
		logger.WithContext(ctx).Warn("PayPal order lookup failed", "order_id", orderID, "error", err)
		return 0, apperrors.NewValidationError("sessionId", "session could not be resolved from the payment order")
	}
	if oc.SessionID == 0 {
		return 0, apperrors.NewValidationError("sessionId", "payment order carries no session")
	}
	if oc.ParticipantCount > 0 && oc.ParticipantCount != len(req.Participants) {
		return 0, apperrors.NewValidationError("participantCount", "does not match the paid order")
	}

	return oc.SessionID, nil
}

func newDraftBooking(req *models.CreateBookingRequest, sessionID int64) *models.Booking {
	invoicingType := models.InvoicingType(strings.TrimSpace(req.InvoicingType))
	if invoicingType == "" {
		invoicingType = models.InvoicingPrivate
	}

	booking := &models.Booking{
		SessionID:           sessionID,
		InvoicingType:       invoicingType,
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
		Email:               strings.TrimSpace(req.Email),
		Phone:               strings.TrimSpace(req.Phone),
		CompanyName:         strings.TrimSpace(req.CompanyName),
		TaxID:               strings.TrimSpace(req.TaxID),
		InvoiceEmail:        strings.TrimSpace(req.InvoiceEmail),
		Street:              strings.TrimSpace(req.Street),
		PostalCode:          strings.TrimSpace(req.PostalCode),
		City:                strings.TrimSpace(req.City),
		Country:             strings.TrimSpace(req.Country),
		Status:              models.BookingStatusDraft,
		TermsAccepted:       req.TermsAccepted.Bool(),
		PrivacyAcknowledged: req.PrivacyAcknowledged.Bool(),
		NewsletterOptIn:     req.NewsletterOptIn.Bool(),
		Notes:               strings.TrimSpace(req.Notes),
	}
	booking.SetParticipants(req.Participants)
	return booking
}

func (s *BookingService) creationHooks(booking *models.Booking) []postCommitHook {
	hooks := []postCommitHook{
		{name: "customer_link", run: func(ctx context.Context) error {
			return s.linker.Link(ctx, booking)
		}},
		{name: "title_autofill", run: func(ctx context.Context) error {
			_, _, err := s.titler.FillIfEmpty(ctx, booking.SessionID)
			return err
		}},
		{name: "publish_created", run: func(ctx context.Context) error {
			return s.publisher.Publish(models.EventBookingCreated, models.BookingCreatedEvent{
				BookingID:        booking.ID,
				SessionID:        booking.SessionID,
				ParticipantCount: booking.ParticipantCount,
				TotalGross:       booking.TotalGross,
				Status:           booking.Status,
				Timestamp:        time.Now(),
			})
		}},
	}

	if booking.IsPaid() {
		hooks = append(hooks, postCommitHook{name: "publish_paid", run: func(ctx context.Context) error {
			return s.publisher.Publish(models.EventBookingPaid, paidEvent(booking, sourceCreate))
		}})
	}

	return hooks
}

func paidEvent(b *models.Booking, source string) models.BookingPaidEvent {
	return models.BookingPaidEvent{
		BookingID:        b.ID,
		SessionID:        b.SessionID,
		PaymentMethod:    b.PaymentMethod,
		PaymentReference: b.PaymentReference,
		TotalGross:       b.TotalGross,
		Source:           source,
		Timestamp:        time.Now(),
	}
}

func (s *BookingService) publish(ctx context.Context, subject string, event any) {
	if err := s.publisher.Publish(subject, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event", "subject", subject, "error", err)
	}
}

// maxUpdateAttempts bounds the re-reads when a payment path wins the race
const maxUpdateAttempts = 3

// Update applies staff edits. Pricing is re-derived when a pricing-relevant
// field changes on an open booking; a paid booking keeps its price and seat count.
// The write is guarded by the status that was read, so a booking paid in the
// meantime is re-read and judged by the paid rules.
func (s *BookingService) Update(ctx context.Context, id int64, req *models.UpdateBookingRequest) (*models.Booking, error) {
	log := logger.WithContext(ctx).With("booking_id", id)

	for attempt := 1; ; attempt++ {
		booking, err := s.updateOnce(ctx, id, req)
		if !errors.Is(err, apperrors.ErrBookingConflict) {
			if err != nil {
				return nil, err
			}
			log.Info("Booking updated", "status", booking.Status)
			return booking, nil
		}
		if attempt == maxUpdateAttempts {
			log.Warn("Booking update kept losing to payment confirmations", "attempts", attempt)
			return nil, err
		}
		log.Info("Booking changed while updating, retrying", "attempt", attempt)
	}
}

func (s *BookingService) updateOnce(ctx context.Context, id int64, req *models.UpdateBookingRequest) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}

	paid := booking.IsPaid()
	if paid && (req.VATApplicable != nil || req.PriceGross != nil || req.PriceNet != nil) {
		return nil, apperrors.NewValidationError("pricing", "the price of a paid booking cannot change")
	}
	if paid && req.Participants != nil && len(*req.Participants) != booking.ParticipantCount {
		return nil, apperrors.NewValidationError("participants", "the participant count of a paid booking cannot change")
	}

	applyUpdate(booking, req)
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	if !paid && req.ChangesPricing() {
		vat := booking.VATApplicable
		if req.VATApplicable != nil {
			vat = *req.VATApplicable
		}
		in := pricing.QuoteInput{
			SessionID:        booking.SessionID,
			ParticipantCount: booking.ParticipantCount,
			VoucherCode:      booking.VoucherCode,
			VATApplicable:    &vat,
			GrossPerSeat:     req.PriceGross,
			NetPerSeat:       req.PriceNet,
		}
		if booking.VoucherCode != "" {
			// the voucher was accepted at checkout; later expiry does not take it away
			in.VoucherAppliedAt = booking.CreatedAt
		}
		quote, err := s.quoter.Quote(ctx, in)
		if err != nil {
			return nil, err
		}
		booking.Pricing = quote.Final.Pricing()
	}

	if err := s.bookings.Update(ctx, booking); err != nil {
		if apperrors.IsClientError(err) || errors.Is(err, apperrors.ErrBookingNotFound) || errors.Is(err, apperrors.ErrBookingConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	return booking, nil
}

func applyUpdate(b *models.Booking, req *models.UpdateBookingRequest) {
	if req.Participants != nil {
		b.SetParticipants(*req.Participants)
	}
	if req.InvoicingType != nil {
		b.InvoicingType = models.InvoicingType(strings.TrimSpace(*req.InvoicingType))
	}

	fields := []struct {
		src *string
		dst *string
	}{
		{req.FirstName, &b.FirstName},
		{req.LastName, &b.LastName},
		{req.Email, &b.Email},
		{req.Phone, &b.Phone},
		{req.CompanyName, &b.CompanyName},
		{req.TaxID, &b.TaxID},
		{req.InvoiceEmail, &b.InvoiceEmail},
		{req.Street, &b.Street},
		{req.PostalCode, &b.PostalCode},
		{req.City, &b.City},
		{req.Country, &b.Country},
		{req.Notes, &b.Notes},
	}
	for _, f := range fields {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
}

// GetPublic returns the PII-free view of a booking
func (s *BookingService) GetPublic(ctx context.Context, id int64) (*models.PublicBooking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}

	public := models.NewPublicBooking(booking)
	return &public, nil
}
