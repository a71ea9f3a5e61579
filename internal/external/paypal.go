package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seminarbuchung/internal/logger"
)

const (
	PayPalModeSandbox = "sandbox"
	PayPalModeLive    = "live"

	payPalLiveURL    = "https://api-m.paypal.com"
	payPalSandboxURL = "https://api-m.sandbox.paypal.com"

	// refresh the token a minute before PayPal expires it
	tokenExpirySkew = time.Minute
)

type PayPalConfig struct {
	Mode         string
	ClientID     string
	ClientSecret string
	WebhookID    string
	// BaseURL overrides the endpoint chosen by Mode
	BaseURL string
	Timeout time.Duration
}

// Endpoint returns the REST base url for the configured mode
func (c PayPalConfig) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Mode, PayPalModeLive) {
		return payPalLiveURL
	}
	return payPalSandboxURL
}

// TokenCache stores the OAuth access token between requests.
// Get returns "" and no error on a miss.
type TokenCache interface {
	GetPayPalToken(ctx context.Context) (string, error)
	SetPayPalToken(ctx context.Context, token string, ttl time.Duration) error
	DeletePayPalToken(ctx context.Context) error
}

type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	tokens       TokenCache
	httpClient   *http.Client
}

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Capture is the subset of /v2/payments/captures/{id} the verifier reads
type Capture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   Money  `json:"amount"`
	CustomID string `json:"custom_id,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      Money  `json:"amount"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// CustomID returns the custom_id of the first purchase unit
func (o *Order) CustomID() string {
	if o == nil || len(o.PurchaseUnits) == 0 {
		return ""
	}
	return o.PurchaseUnits[0].CustomID
}

// WebhookHeaders are the PayPal transmission headers of a webhook delivery
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	TransmissionSig  string
}

// WebhookHeadersFrom reads the paypal-* headers of a request
func WebhookHeadersFrom(h http.Header) WebhookHeaders {
	return WebhookHeaders{
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
	}
}

// Complete reports whether every header needed for verification is present
func (h WebhookHeaders) Complete() bool {
	return h.TransmissionID != "" && h.TransmissionTime != "" && h.CertURL != "" &&
		h.AuthAlgo != "" && h.TransmissionSig != ""
}

type verifySignatureRequest struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	TransmissionSig  string          `json:"transmission_sig"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// APIError is a non-2xx answer from PayPal
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func NewPayPalClient(cfg PayPalConfig, tokens TokenCache) *PayPalClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &PayPalClient{
		baseURL:      cfg.Endpoint(),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		tokens:       tokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// AccessToken exchanges the client credentials for a bearer token
func (pc *PayPalClient) AccessToken(ctx context.Context) (string, error) {
	if pc.clientID == "" || pc.clientSecret == "" {
		return "", fmt.Errorf("paypal credentials are not configured")
	}

	if pc.tokens != nil {
		token, err := pc.tokens.GetPayPalToken(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("PayPal token cache lookup failed", "error", err)
		} else if token != "" {
			return token, nil
		}
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(pc.clientID, pc.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := pc.do(req, "token", &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("paypal token response has no access_token")
	}

	if pc.tokens != nil && result.ExpiresIn > 0 {
		ttl := time.Duration(result.ExpiresIn)*time.Second - tokenExpirySkew
		if ttl > 0 {
			if err := pc.tokens.SetPayPalToken(ctx, result.AccessToken, ttl); err != nil {
				logger.WithContext(ctx).Warn("Failed to cache PayPal token", "error", err)
			}
		}
	}

	return result.AccessToken, nil
}

// evictToken drops a cached token PayPal no longer accepts
func (pc *PayPalClient) evictToken(ctx context.Context) {
	if pc.tokens == nil {
		return
	}
	if err := pc.tokens.DeletePayPalToken(ctx); err != nil {
		logger.WithContext(ctx).Warn("Failed to evict PayPal token", "error", err)
	}
}

// authorized sends the request build makes for a bearer token. On 401 the
// cached token is evicted and the call is repeated once with a fresh one.
func (pc *PayPalClient) authorized(ctx context.Context, op string, build func(token string) (*http.Request, error), out any) error {
	for attempt := 1; ; attempt++ {
		token, err := pc.AccessToken(ctx)
		if err != nil {
			return err
		}

		req, err := build(token)
		if err != nil {
			return fmt.Errorf("failed to create %s request: %w", op, err)
		}

		err = pc.do(req, op, out)
		var apiErr *APIError
		if attempt == 1 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			logger.WithContext(ctx).Info("PayPal rejected access token, fetching a new one", "op", op)
			pc.evictToken(ctx)
			continue
		}
		return err
	}
}

func (pc *PayPalClient) GetCapture(ctx context.Context, captureID string) (*Capture, error) {
	var capture Capture
	if err := pc.get(ctx, "capture", "/v2/payments/captures/"+url.PathEscape(captureID), &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

func (pc *PayPalClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := pc.get(ctx, "order", "/v2/checkout/orders/"+url.PathEscape(orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifyWebhookSignature asks PayPal whether a delivery is authentic.
// Without a webhook id or with incomplete headers it returns false without calling out.
func (pc *PayPalClient) VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, event json.RawMessage) (bool, error) {
	if pc.webhookID == "" || !headers.Complete() {
		return false, nil
	}

	body, err := json.Marshal(verifySignatureRequest{
		TransmissionID:   headers.TransmissionID,
		TransmissionTime: headers.TransmissionTime,
		CertURL:          headers.CertURL,
		AuthAlgo:         headers.AuthAlgo,
		TransmissionSig:  headers.TransmissionSig,
		WebhookID:        pc.webhookID,
		WebhookEvent:     event,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal verification request: %w", err)
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	err = pc.authorized(ctx, "verify-webhook-signature", func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}, &result)
	if err != nil {
		return false, err
	}

	return result.VerificationStatus == "SUCCESS", nil
}

func (pc *PayPalClient) get(ctx context.Context, op, path string, out any) error {
	return pc.authorized(ctx, op, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}, out)
}

func (pc *PayPalClient) do(req *http.Request, op string, out any) error {
	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call paypal %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode paypal %s response: %w", op, err)
	}
	return nil
}
