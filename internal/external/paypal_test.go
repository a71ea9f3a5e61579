package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokenCache struct {
	token   string
	ttl     time.Duration
	deletes int
}

func (m *memoryTokenCache) GetPayPalToken(context.Context) (string, error) { return m.token, nil }

func (m *memoryTokenCache) SetPayPalToken(_ context.Context, token string, ttl time.Duration) error {
	m.token, m.ttl = token, ttl
	return nil
}

func (m *memoryTokenCache) DeletePayPalToken(context.Context) error {
	m.token = ""
	m.deletes++
	return nil
}

type fakePayPal struct {
	tokenCalls  atomic.Int32
	verifyCalls atomic.Int32
	lastVerify  verifySignatureRequest
}

func (f *fakePayPal) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 32400})
	})
	mux.HandleFunc("/v2/payments/captures/CAP-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"EUR","value":"238.00"}}`))
	})
	mux.HandleFunc("/v2/checkout/orders/ORD-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ORD-1","status":"COMPLETED","purchase_units":[{"custom_id":"weinseminar|7|2","amount":{"currency_code":"EUR","value":"238.00"}}]}`))
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		f.verifyCalls.Add(1)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastVerify))
		w.Write([]byte(`{"verification_status":"SUCCESS"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, cache TokenCache) *PayPalClient {
	return NewPayPalClient(PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
		BaseURL:      srv.URL + "/",
	}, cache)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://api-m.sandbox.paypal.com", PayPalConfig{}.Endpoint())
	assert.Equal(t, "https://api-m.sandbox.paypal.com", PayPalConfig{Mode: "sandbox"}.Endpoint())
	assert.Equal(t, "https://api-m.paypal.com", PayPalConfig{Mode: "LIVE"}.Endpoint())
	assert.Equal(t, "http://localhost:9000", PayPalConfig{Mode: "live", BaseURL: "http://localhost:9000/"}.Endpoint())
}

func TestAccessTokenIsCached(t *testing.T) {
	fake := &fakePayPal{}
	cache := &memoryTokenCache{}
	client := newTestClient(fake.server(t), cache)

	token, err := client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, 32400*time.Second-time.Minute, cache.ttl)

	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestAccessTokenWithoutCredentials(t *testing.T) {
	client := NewPayPalClient(PayPalConfig{}, nil)
	_, err := client.AccessToken(context.Background())
	assert.Error(t, err)
}

func TestAccessTokenRejected(t *testing.T) {
	fake := &fakePayPal{}
	srv := fake.server(t)
	client := NewPayPalClient(PayPalConfig{ClientID: "client", ClientSecret: "wrong", BaseURL: srv.URL}, nil)

	_, err := client.AccessToken(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestGetCaptureAndOrder(t *testing.T) {
	client := newTestClient((&fakePayPal{}).server(t), nil)

	capture, err := client.GetCapture(context.Background(), "CAP-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", capture.Status)
	assert.Equal(t, "EUR", capture.Amount.CurrencyCode)
	assert.Equal(t, "238.00", capture.Amount.Value)

	order, err := client.GetOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "weinseminar|7|2", order.CustomID())

	_, err = client.GetCapture(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestVerifyWebhookSignature(t *testing.T) {
	fake := &fakePayPal{}
	client := newTestClient(fake.server(t), nil)

	headers := WebhookHeaders{
		TransmissionID:   "t-1",
		TransmissionTime: "2025-06-15T10:00:00Z",
		CertURL:          "https://api.paypal.com/cert.pem",
		AuthAlgo:         "SHA256withRSA",
		TransmissionSig:  "sig",
	}
	event := json.RawMessage(`{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`)

	ok, err := client.VerifyWebhookSignature(context.Background(), headers, event)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "WH-1", fake.lastVerify.WebhookID)
	assert.Equal(t, "t-1", fake.lastVerify.TransmissionID)
	assert.JSONEq(t, string(event), string(fake.lastVerify.WebhookEvent))

	headers.TransmissionSig = ""
	ok, err = client.VerifyWebhookSignature(context.Background(), headers, event)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), fake.verifyCalls.Load())
}

func TestWebhookHeadersFrom(t *testing.T) {
	h := http.Header{}
	h.Set("paypal-transmission-id", "t-1")
	h.Set("paypal-transmission-time", "now")
	h.Set("paypal-cert-url", "cert")
	h.Set("paypal-auth-algo", "algo")
	h.Set("paypal-transmission-sig", "sig")

	headers := WebhookHeadersFrom(h)
	assert.True(t, headers.Complete())
	assert.Equal(t, "t-1", headers.TransmissionID)
}

func TestRevokedCachedTokenIsReplaced(t *testing.T) {
	fake := &fakePayPal{}
	cache := &memoryTokenCache{token: "tok-revoked", ttl: time.Hour}
	client := newTestClient(fake.server(t), cache)

	capture, err := client.GetCapture(context.Background(), "CAP-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", capture.Status)

	assert.Equal(t, 1, cache.deletes)
	assert.Equal(t, "tok-1", cache.token)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())

	headers := WebhookHeaders{TransmissionID: "t-2", TransmissionTime: "now", CertURL: "cert", AuthAlgo: "algo", TransmissionSig: "sig"}
	ok, err := client.VerifyWebhookSignature(context.Background(), headers, json.RawMessage(`{"id":"WH-EVT"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, cache.deletes)
}

func TestUnauthorizedIsRetriedOnce(t *testing.T) {
	var tokenCalls, captureCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 32400})
	})
	mux.HandleFunc("/v2/payments/captures/CAP-1", func(w http.ResponseWriter, r *http.Request) {
		captureCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cache := &memoryTokenCache{}
	_, err := newTestClient(srv, cache).GetCapture(context.Background(), "CAP-1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(2), captureCalls.Load())
	assert.Equal(t, int32(2), tokenCalls.Load())
	assert.Equal(t, 1, cache.deletes)
}
