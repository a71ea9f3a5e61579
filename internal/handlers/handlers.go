package handlers

import (
	"context"
	"errors"
	"net/http"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/external"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/search"

	"github.com/gin-gonic/gin"
)

type BookingService interface {
	Create(ctx context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error)
	Update(ctx context.Context, id int64, req *models.UpdateBookingRequest) (*models.Booking, error)
	GetPublic(ctx context.Context, id int64) (*models.PublicBooking, error)
}

type VoucherService interface {
	Validate(ctx context.Context, req *models.VoucherValidateRequest) models.VoucherValidateResponse
}

type WebhookProcessor interface {
	HandleEvent(ctx context.Context, headers external.WebhookHeaders, body []byte) models.WebhookAck
}

type CatalogService interface {
	List(ctx context.Context) ([]models.SeminarWithSessions, error)
	Detail(ctx context.Context, slug string) (*models.SeminarWithSessions, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]search.SessionDocument, error)
}

type Handlers struct {
	bookings BookingService
	vouchers VoucherService
	webhooks WebhookProcessor
	catalog  CatalogService
}

func NewHandlers(bookings BookingService, vouchers VoucherService, webhooks WebhookProcessor, catalog CatalogService) *Handlers {
	return &Handlers{
		bookings: bookings,
		vouchers: vouchers,
		webhooks: webhooks,
		catalog:  catalog,
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses.
// Only client errors carry their message to the caller.
func respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, apperrors.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, apperrors.ErrBookingConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Booking was modified concurrently, retry"})
	case apperrors.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.WithContext(c.Request.Context()).Error(msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
