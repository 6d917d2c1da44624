package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
	"foundation_site/internal/models"
)

func testPaymentRequest() PaymentRequest {
	name := "Jane Donor"
	d := &models.Donation{
		DonorName:  &name,
		DonorEmail: "jane@example.com",
		Amount:     50000,
		Currency:   "TZS",
		Campaign:   "samatta_cup",
	}
	d.ID = "0b6f5c1e-1111-4c3a-9d2f-7a1e2b3c4d5e"
	return NewPaymentRequest(d, "https://site.test/donate?status=pending", "https://site.test/api/webhooks/clickpesa")
}

func newTestClickPesa(url string) *ClickPesaClient {
	return NewClickPesaClient(config.PaymentConfig{
		ClickPesaAPIURL:     url,
		ClickPesaMerchantID: "merchant-1",
		ClickPesaAPIKey:     "key-1",
	}, nil)
}

func TestClickPesaInitiatePayment(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/initiate", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"payment_url":"https://pay.clickpesa.test/abc","transaction_id":"CP-123"}`))
	}))
	defer srv.Close()

	resp, err := newTestClickPesa(srv.URL).InitiatePayment(context.Background(), testPaymentRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.clickpesa.test/abc", resp.PaymentURL)
	assert.Equal(t, "CP-123", resp.TransactionID)
	assert.Equal(t, MsgRedirecting, resp.Message)
	assert.NotEmpty(t, resp.Request)
	assert.NotEmpty(t, resp.Response)

	assert.Equal(t, "merchant-1", payload["merchant_id"])
	assert.Equal(t, 50000.0, payload["amount"])
	assert.Equal(t, "TZS", payload["currency"])
	assert.Equal(t, "donation-0b6f5c1e-1111-4c3a-9d2f-7a1e2b3c4d5e", payload["reference"])
	assert.Equal(t, "https://site.test/api/webhooks/clickpesa", payload["webhook_url"])

	// metadata travels as a JSON-encoded string
	metaStr, ok := payload["metadata"].(string)
	require.True(t, ok)
	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(metaStr), &meta))
	assert.Equal(t, "samatta_cup", meta["campaign"])
	assert.Equal(t, "Jane Donor", meta["donor_name"])
}

func TestClickPesaMissingCredentials(t *testing.T) {
	c := NewClickPesaClient(config.PaymentConfig{}, nil)

	_, err := c.InitiatePayment(context.Background(), testPaymentRequest())
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
	assert.False(t, apperror.Retryable(err))

	_, err = c.VerifyPayment(context.Background(), "CP-1")
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
}

func TestClickPesaErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      apperror.Kind
		retryable bool
	}{
		{"invalid amount", 400, `{"code":"INVALID_AMOUNT","message":"Amount too low"}`, apperror.KindBadRequest, false},
		{"rate limited", 429, `{"message":"Too many requests"}`, apperror.KindRateLimit, true},
		{"gateway down", 502, `bad gateway`, apperror.KindTransient, true},
		{"no payment url", 200, `{"transaction_id":"CP-9"}`, apperror.KindBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClickPesa(srv.URL).InitiatePayment(context.Background(), testPaymentRequest())
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			assert.Equal(t, tt.retryable, apperror.Retryable(err))
		})
	}
}

func TestClickPesaVerifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/CP-123/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"transaction_id":"CP-123","reference":"donation-d1","status":"SUCCESS","channel":"M-PESA"}`))
	}))
	defer srv.Close()

	v, err := newTestClickPesa(srv.URL).VerifyPayment(context.Background(), "CP-123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, v.Status)
	assert.Equal(t, "SUCCESS", v.GatewayStatus)
	assert.Equal(t, "M-PESA", v.Method)
	assert.Equal(t, "donation-d1", v.Reference)
}

func TestParseClickPesaCallback(t *testing.T) {
	flat, err := ParseClickPesaCallback([]byte(`{"transaction_id":"CP-1","reference":"donation-d1","status":"FAILED"}`))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, flat.Status)

	nested, err := ParseClickPesaCallback([]byte(`{"event":"PAYMENT RECEIVED","data":{"transaction_id":"CP-2","reference":"donation-d2","status":"SETTLED"}}`))
	require.NoError(t, err)
	assert.Equal(t, "CP-2", nested.TransactionID)
	assert.Equal(t, models.PaymentStatusCompleted, nested.Status)

	_, err = ParseClickPesaCallback([]byte(`{"status":"SUCCESS"}`))
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}

func TestClickPesaStatus(t *testing.T) {
	assert.Equal(t, models.PaymentStatusCompleted, ClickPesaStatus("success"))
	assert.Equal(t, models.PaymentStatusFailed, ClickPesaStatus("EXPIRED"))
	assert.Equal(t, models.PaymentStatusPending, ClickPesaStatus("PROCESSING"))
}

func TestDonationReferenceRoundTrip(t *testing.T) {
	id, ok := DonationIDFromReference(DonationReference("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = DonationIDFromReference("CP-123")
	assert.False(t, ok)
}
