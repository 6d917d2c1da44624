package services

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
	"foundation_site/internal/models"
)

func signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestMidtransMissingServerKey(t *testing.T) {
	c := NewMidtransClient(config.PaymentConfig{})

	_, err := c.InitiatePayment(context.Background(), testPaymentRequest())
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))

	_, err = c.VerifyPayment(context.Background(), "donation-1")
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))

	assert.True(t, apperror.Is(c.CancelTransaction("donation-1"), apperror.KindConfiguration))
}

func TestMidtransRejectsOtherCurrencies(t *testing.T) {
	c := NewMidtransClient(config.PaymentConfig{MidtransServerKey: "SB-Mid-server-xyz"})

	for _, currency := range []string{"USD", "TZS", "eur", "GBP"} {
		req := testPaymentRequest()
		req.Currency = currency
		resp, err := c.InitiatePayment(context.Background(), req)
		assert.Nil(t, resp, currency)
		assert.True(t, apperror.Is(err, apperror.KindBadRequest), currency)
		assert.False(t, apperror.Retryable(err), currency)
		assert.Contains(t, err.Error(), "unsupported_currency")
	}
}

func TestMidtransVerifySignature(t *testing.T) {
	c := NewMidtransClient(config.PaymentConfig{MidtransServerKey: "SB-Mid-server-xyz"})

	good := signature("donation-1", "200", "50000.00", "SB-Mid-server-xyz")
	assert.True(t, c.VerifySignature("donation-1", "200", "50000.00", good))
	assert.False(t, c.VerifySignature("donation-1", "200", "1.00", good))
	assert.False(t, c.VerifySignature("donation-1", "200", "50000.00", ""))
}

func TestMidtransParseNotification(t *testing.T) {
	c := NewMidtransClient(config.PaymentConfig{MidtransServerKey: "SB-Mid-server-xyz"})
	sig := signature("donation-d1", "200", "50000.00", "SB-Mid-server-xyz")

	body := fmt.Sprintf(`{"order_id":"donation-d1","status_code":"200","gross_amount":"50000.00","signature_key":%q,"transaction_status":"settlement","payment_type":"gopay"}`, sig)
	v, err := c.ParseNotification([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, v.Status)
	assert.Equal(t, "donation-d1", v.Reference)
	assert.Equal(t, "gopay", v.Method)

	forged := `{"order_id":"donation-d1","status_code":"200","gross_amount":"50000.00","signature_key":"deadbeef","transaction_status":"settlement"}`
	_, err = c.ParseNotification([]byte(forged))
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}

func TestMidtransStatus(t *testing.T) {
	tests := []struct {
		transaction string
		fraud       string
		expected    models.PaymentStatus
	}{
		{"settlement", "", models.PaymentStatusCompleted},
		{"capture", "accept", models.PaymentStatusCompleted},
		{"capture", "challenge", models.PaymentStatusPending},
		{"pending", "", models.PaymentStatusPending},
		{"deny", "", models.PaymentStatusFailed},
		{"expire", "", models.PaymentStatusFailed},
		{"cancel", "", models.PaymentStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.transaction+"/"+tt.fraud, func(t *testing.T) {
			assert.Equal(t, tt.expected, MidtransStatus(tt.transaction, tt.fraud))
		})
	}
}
