package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
)

// unknownBookingID не должен существовать в проверяемой базе
const unknownBookingID = 999999999

// APIValidator - smoke-проверка публичного API запущенного сервиса
type APIValidator struct {
	baseURL string
	client  *http.Client
}

// NewAPIValidator создает новый валидатор
func NewAPIValidator(baseURL string) *APIValidator {
	return &APIValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateAll проверяет все публичные endpoints
func (v *APIValidator) ValidateAll(ctx context.Context) error {
	log := logger.Get()
	log.Info("Starting API validation", "url", v.baseURL)

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"health", v.validateHealth},
		{"vouchers", v.validateVouchers},
		{"bookings", v.validateBookings},
		{"payment webhook", v.validateWebhook},
		{"seminars", v.validateSeminars},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return fmt.Errorf("%s validation failed: %w", check.name, err)
		}
		log.Info("Endpoint valid", "check", check.name)
	}

	log.Info("All endpoints passed validation")
	return nil
}

func (v *APIValidator) validateHealth(ctx context.Context) error {
	resp, err := v.makeRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /health: expected 200, got %d", resp.StatusCode)
	}
	return nil
}

// Ответ всегда 200, даже для неизвестного кода
func (v *APIValidator) validateVouchers(ctx context.Context) error {
	body := map[string]any{
		"sessionId":        unknownBookingID,
		"participantCount": 1,
		"voucherCode":      "VALIDATION-UNKNOWN",
	}

	resp, err := v.makeRequest(ctx, http.MethodPost, "/public/vouchers/validate", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST /public/vouchers/validate: expected 200, got %d", resp.StatusCode)
	}

	var out models.VoucherValidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("POST /public/vouchers/validate: failed to decode response: %w", err)
	}
	if out.Valid {
		return fmt.Errorf("POST /public/vouchers/validate: unknown voucher reported as valid")
	}
	return nil
}

func (v *APIValidator) validateBookings(ctx context.Context) error {
	resp, err := v.makeRequest(ctx, http.MethodGet, fmt.Sprintf("/public/bookings/%d", unknownBookingID), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("GET /public/bookings/:id: expected 404, got %d", resp.StatusCode)
	}

	// без участников бронирование невалидно
	resp, err = v.makeRequest(ctx, http.MethodPost, "/public/bookings", map[string]any{"sessionId": 1})
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("POST /public/bookings: expected 400, got %d", resp.StatusCode)
	}
	return nil
}

// Неподписанный webhook подтверждается, но не проверяется
func (v *APIValidator) validateWebhook(ctx context.Context) error {
	body := map[string]any{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource":   map[string]any{"id": "VALIDATION-CAPTURE"},
	}

	resp, err := v.makeRequest(ctx, http.MethodPost, "/public/payment-webhook", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST /public/payment-webhook: expected 200, got %d", resp.StatusCode)
	}

	var ack models.WebhookAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("POST /public/payment-webhook: failed to decode response: %w", err)
	}
	if !ack.OK || ack.Verified {
		return fmt.Errorf("POST /public/payment-webhook: expected {ok:true, verified:false}, got %+v", ack)
	}
	return nil
}

func (v *APIValidator) validateSeminars(ctx context.Context) error {
	resp, err := v.makeRequest(ctx, http.MethodGet, "/public/seminars", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /public/seminars: expected 200, got %d", resp.StatusCode)
	}

	var list []models.SeminarWithSessions
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("GET /public/seminars: failed to decode response: %w", err)
	}
	return nil
}

func (v *APIValidator) makeRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

// RunValidation запускает валидацию API
func RunValidation() {
	baseURL := os.Getenv("VALIDATION_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}

	validator := NewAPIValidator(baseURL)
	if err := validator.ValidateAll(context.Background()); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
}
