package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/external"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/search"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings struct {
	createErr error
	updateErr error
	lastReq   *models.CreateBookingRequest
	lastPatch *models.UpdateBookingRequest
}

func (f *fakeBookings) Create(_ context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	f.lastReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	id, _ := req.SessionRef()
	return &models.CreateBookingResponse{
		ID:               1,
		SessionID:        id,
		ParticipantCount: len(req.Participants),
		Status:           models.BookingStatusOpen,
		Pricing:          models.Pricing{TotalGross: 238, TotalNet: 200, TotalVATAmount: 38},
	}, nil
}

func (f *fakeBookings) Update(_ context.Context, id int64, req *models.UpdateBookingRequest) (*models.Booking, error) {
	f.lastPatch = req
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &models.Booking{ID: id, Status: models.BookingStatusPaid}, nil
}

func (f *fakeBookings) GetPublic(_ context.Context, id int64) (*models.PublicBooking, error) {
	if id != 1 {
		return nil, apperrors.ErrBookingNotFound
	}
	return &models.PublicBooking{ID: 1, Status: models.BookingStatusPaid, ParticipantCount: 2, TotalGross: 238}, nil
}

type fakeVouchers struct{}

func (fakeVouchers) Validate(_ context.Context, req *models.VoucherValidateRequest) models.VoucherValidateResponse {
	if req.VoucherCode == "" {
		return models.VoucherValidateResponse{Reason: "no code"}
	}
	return models.VoucherValidateResponse{Valid: true, Total: models.VoucherAmounts{TotalGross: 188}}
}

type fakeWebhooks struct {
	headers external.WebhookHeaders
	body    []byte
}

func (f *fakeWebhooks) HandleEvent(_ context.Context, headers external.WebhookHeaders, body []byte) models.WebhookAck {
	f.headers = headers
	f.body = body
	return models.WebhookAck{OK: true, Verified: headers.Complete()}
}

type fakeCatalog struct {
	err error
}

func (f fakeCatalog) List(_ context.Context) ([]models.SeminarWithSessions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.SeminarWithSessions{{Course: models.Course{ID: 10, Name: "Weinseminar", Slug: "weinseminar"}, Sessions: []models.Session{}}}, nil
}

func (f fakeCatalog) Detail(_ context.Context, slug string) (*models.SeminarWithSessions, error) {
	if slug != "weinseminar" {
		return nil, nil
	}
	return &models.SeminarWithSessions{Course: models.Course{ID: 10, Slug: slug}}, nil
}

func (f fakeCatalog) Search(_ context.Context, query string, _, _ int) ([]search.SessionDocument, error) {
	return []search.SessionDocument{{ID: 1, CourseName: query}}, nil
}

type testRouter struct {
	*gin.Engine
	bookings *fakeBookings
	webhooks *fakeWebhooks
}

func setupRouter(catalog fakeCatalog) *testRouter {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	tr := &testRouter{Engine: r, bookings: &fakeBookings{}, webhooks: &fakeWebhooks{}}
	h := NewHandlers(tr.bookings, fakeVouchers{}, tr.webhooks, catalog)

	public := r.Group("/public")
	{
		public.POST("/bookings", h.CreateBooking)
		public.GET("/bookings/:id", h.GetBooking)
		public.POST("/vouchers/validate", h.ValidateVoucher)
		public.POST("/payment-webhook", h.PaymentWebhook)
		public.GET("/seminars", h.ListSeminars)
		public.GET("/seminars/:slug", h.GetSeminar)
	}
	r.PATCH("/admin/bookings/:id", h.UpdateBooking)

	return tr
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateBooking(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	body := `{
		"session": {"connect": [{"id": "7"}]},
		"invoicingType": "private",
		"firstName": "Anna", "lastName": "Schmidt", "email": "anna@example.de",
		"participants": [{"firstName": "Anna", "lastName": "Schmidt"}, {"firstName": "Ben", "lastName": "Schmidt"}],
		"termsAccepted": "yes",
		"priceGross": 1
	}`
	w := perform(r, http.MethodPost, "/public/bookings", body, nil)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.CreateBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.ID)
	assert.Equal(t, int64(7), response.SessionID)
	assert.Equal(t, 238.0, response.TotalGross)
	assert.True(t, r.bookings.lastReq.TermsAccepted.Bool())
}

func TestCreateBookingErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		msg    string
	}{
		"validation": {apperrors.NewValidationError("participants", "at least one participant is required"), http.StatusBadRequest, "at least one participant is required"},
		"payment":    {&apperrors.PaymentVerificationError{Reason: "amount mismatch"}, http.StatusBadRequest, "payment verification failed: amount mismatch"},
		"pricing":    {&apperrors.InvalidPriceError{SessionID: 3}, http.StatusBadRequest, "no usable price"},
		"internal":   {errors.New("pq: connection refused"), http.StatusInternalServerError, "Failed to create booking"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := setupRouter(fakeCatalog{})
			r.bookings.createErr = tc.err

			w := perform(r, http.MethodPost, "/public/bookings", `{"sessionId": 1}`, nil)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.msg)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestCreateBookingMalformedBody(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	w := perform(r, http.MethodPost, "/public/bookings", `{"termsAccepted": "maybe"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, r.bookings.lastReq)
}

func TestGetBooking(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	w := perform(r, http.MethodGet, "/public/bookings/1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "email")

	w = perform(r, http.MethodGet, "/public/bookings/2", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodGet, "/public/bookings/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateVoucherAlwaysOK(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	for _, body := range []string{
		`{"sessionId": 1, "participantCount": 2, "voucherCode": "SOMMER15"}`,
		`{"sessionId": 1}`,
		`not json`,
	} {
		w := perform(r, http.MethodPost, "/public/vouchers/validate", body, nil)
		assert.Equal(t, http.StatusOK, w.Code, body)

		var resp models.VoucherValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
}

func TestPaymentWebhookAlwaysAcknowledges(t *testing.T) {
	r := setupRouter(fakeCatalog{})
	event := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`

	w := perform(r, http.MethodPost, "/public/payment-webhook", event, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"verified":false}`, w.Body.String())
	assert.Equal(t, event, string(r.webhooks.body))

	w = perform(r, http.MethodPost, "/public/payment-webhook", event, map[string]string{
		"PAYPAL-TRANSMISSION-ID":   "tx-1",
		"PAYPAL-TRANSMISSION-TIME": "2025-06-15T10:00:00Z",
		"PAYPAL-CERT-URL":          "https://api.sandbox.paypal.com/certs/1",
		"PAYPAL-AUTH-ALGO":         "SHA256withRSA",
		"PAYPAL-TRANSMISSION-SIG":  "c2ln",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"verified":true}`, w.Body.String())
	assert.Equal(t, "tx-1", r.webhooks.headers.TransmissionID)
}

func TestPaymentWebhookOversizedBody(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	body := bytes.Repeat([]byte("a"), maxWebhookBody+1)
	w := perform(r, http.MethodPost, "/public/payment-webhook", string(body), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, r.webhooks.body)
}

func TestSeminars(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	w := perform(r, http.MethodGet, "/public/seminars", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "weinseminar")

	w = perform(r, http.MethodGet, "/public/seminars?query=wein", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"course_name":"wein"`)

	w = perform(r, http.MethodGet, "/public/seminars?query=wein&pageSize=100", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/public/seminars/weinseminar", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, "/public/seminars/unbekannt", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeminarsError(t *testing.T) {
	r := setupRouter(fakeCatalog{err: errors.New("database gone")})

	w := perform(r, http.MethodGet, "/public/seminars", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUpdateBooking(t *testing.T) {
	r := setupRouter(fakeCatalog{})

	w := perform(r, http.MethodPatch, "/admin/bookings/5", `{"notes": "Rollstuhl", "vatApplicable": false}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, r.bookings.lastPatch.Notes)
	assert.Equal(t, "Rollstuhl", *r.bookings.lastPatch.Notes)
	require.NotNil(t, r.bookings.lastPatch.VATApplicable)
	assert.False(t, *r.bookings.lastPatch.VATApplicable)

	r.bookings.updateErr = apperrors.ErrBookingNotFound
	w = perform(r, http.MethodPatch, "/admin/bookings/5", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	r.bookings.updateErr = apperrors.NewValidationError("pricing", "the price of a paid booking cannot change")
	w = perform(r, http.MethodPatch, "/admin/bookings/5", `{"priceGross": 10}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateBookingConflict(t *testing.T) {
	r := setupRouter(fakeCatalog{})
	r.bookings.updateErr = apperrors.ErrBookingConflict

	w := perform(r, http.MethodPatch, "/admin/bookings/5", `{"notes": "Rollstuhl"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "modified concurrently")
}
