package service

import (
	"context"
	"encoding/json"
	"time"

	"seminarbuchung/internal/external"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/pricing"
	"seminarbuchung/internal/search"
)

// BookingStore is implemented by repository.BookingRepository
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByPaymentReference(ctx context.Context, reference string) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	MarkPaid(ctx context.Context, id int64, method, reference string) (bool, error)
	LinkCustomer(ctx context.Context, bookingID, customerID int64) error
	ListOpenWithReference(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.Booking, error)
	RecordReconcileAttempt(ctx context.Context, id int64, rejected bool) error
}

type CustomerStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) error
}

// Catalog is implemented by repository.CatalogRepository
type Catalog interface {
	pricing.CatalogReader
	GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error)
	ListActiveCourses(ctx context.Context) ([]models.Course, error)
	ListPlannedSessions(ctx context.Context, courseID int64) ([]models.Session, error)
	SetTitleIfEmpty(ctx context.Context, sessionID int64, title string) (bool, error)
}

// PaymentGateway is implemented by external.PayPalClient
type PaymentGateway interface {
	GetCapture(ctx context.Context, captureID string) (*external.Capture, error)
	GetOrder(ctx context.Context, orderID string) (*external.Order, error)
	VerifyWebhookSignature(ctx context.Context, headers external.WebhookHeaders, event json.RawMessage) (bool, error)
}

// Publisher is implemented by messaging.NATSClient
type Publisher interface {
	Publish(subject string, data any) error
}

// WebhookLedger remembers handled webhook event ids
type WebhookLedger interface {
	WebhookProcessed(ctx context.Context, eventID string) (bool, error)
	MarkWebhookProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

// SeminarCache holds the serialized public catalog
type SeminarCache interface {
	GetSeminarList(ctx context.Context) ([]byte, error)
	SetSeminarList(ctx context.Context, data []byte, ttl time.Duration) error
}

type SessionSearcher interface {
	Search(ctx context.Context, query string, page, pageSize int) ([]search.SessionDocument, error)
}
