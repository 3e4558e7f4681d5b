package paystack_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/infra/gateway/paystack"
)

const testSecret = "sk_test_secret"

func sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	client := paystack.New("https://api.paystack.co", testSecret)
	body := []byte(`{"event":"charge.success"}`)

	assert.True(t, client.VerifySignature(body, sign(body, testSecret)))
	assert.False(t, client.VerifySignature(body, sign(body, "sk_wrong")))
	assert.False(t, client.VerifySignature([]byte(`{"event":"tampered"}`), sign(body, testSecret)))
	assert.False(t, client.VerifySignature(body, ""))

	unconfigured := paystack.New("https://api.paystack.co", "")
	assert.False(t, unconfigured.VerifySignature(body, sign(body, testSecret)))
}

func TestVerifyMapsTransactionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		assert.Equal(t, "Bearer "+testSecret, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"amount": 13500000,
				"currency": "NGN",
				"paid_at": "2025-06-05T10:00:00Z",
				"customer": {"email": "guest@example.com"},
				"authorization": {"authorization_code": "AUTH_abc"}
			}
		}`))
	}))
	defer server.Close()

	client := paystack.New(server.URL, testSecret)
	v, err := client.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.True(t, v.Paid)
	assert.Equal(t, int64(13500000), v.Amount)
	assert.Equal(t, "NGN", v.Currency)
	assert.Equal(t, "guest@example.com", v.CustomerEmail)
	assert.Equal(t, "AUTH_abc", v.Authorization)
	assert.Equal(t, 2025, v.PaidAt.Year())
}

func TestVerifyFailedTransactionIsNotPaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true, "message": "ok", "data": {"status": "failed", "amount": 100, "currency": "NGN"}}`))
	}))
	defer server.Close()

	client := paystack.New(server.URL, testSecret)
	v, err := client.Verify(context.Background(), "ref-2")
	require.NoError(t, err)
	assert.False(t, v.Paid)
	assert.Equal(t, "failed", v.Status)
}

func TestVerifyGatewayFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
	}))
	defer server.Close()

	client := paystack.New(server.URL, testSecret)
	_, err := client.Verify(context.Background(), "missing")
	assert.ErrorIs(t, err, paystack.ErrGatewayStatus)
}

func TestClientRequiresSecret(t *testing.T) {
	client := paystack.New("https://api.paystack.co", "")
	_, err := client.Verify(context.Background(), "ref")
	assert.ErrorIs(t, err, paystack.ErrNotConfigured)

	_, err = client.Initialize(context.Background(), "ref", "a@b.c", 100, "NGN")
	assert.ErrorIs(t, err, paystack.ErrNotConfigured)
}
