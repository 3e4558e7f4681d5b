package ginserver_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/app/policies"
	"shortstay/internal/app/services/reconcile"
	domainbooking "shortstay/internal/domain/booking"
	domainpayments "shortstay/internal/domain/payments"
	"shortstay/internal/infra/gateway/paystack"
	"shortstay/internal/infra/gateway/stripe"
	ginserver "shortstay/internal/infra/http/gin"
	"shortstay/internal/infra/storage/memory"
)

const (
	paystackSecret = "sk_test_webhook"
	stripeSecret   = "whsec_test_webhook"
)

type stubGateway struct {
	verification policies.Verification
}

func (g stubGateway) Initialize(ctx context.Context, reference, email string, amount int64, currency string) (policies.Checkout, error) {
	return policies.Checkout{Reference: reference}, nil
}

func (g stubGateway) Verify(ctx context.Context, reference string) (policies.Verification, error) {
	return g.verification, nil
}

type webhookFixture struct {
	router  *gin.Engine
	factory memory.Factory
}

func newWebhookFixture(t *testing.T) webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	factory := memory.NewFactory()
	ctx := context.Background()

	for _, seed := range []struct {
		bookingID string
		provider  domainpayments.Provider
		reference string
	}{
		{"bk-ps", domainpayments.ProviderPaystack, "ref-ps"},
		{"bk-st", domainpayments.ProviderStripe, "cs_test_1"},
	} {
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:          domainbooking.BookingID(seed.bookingID),
			ListingID:   "lst-1",
			GuestID:     "guest-1",
			CheckIn:     "2025-06-10",
			CheckOut:    "2025-06-13",
			Guests:      1,
			Nights:      3,
			TotalAmount: 300,
			Currency:    "NGN",
			CreatedAt:   time.Now(),
		})
		require.NoError(t, err)
		require.NoError(t, b.Approve(time.Now()))
		require.NoError(t, factory.BookingRepo.Save(ctx, b))
		payment := domainpayments.NewPayment("pay-"+seed.bookingID, b.ID, seed.provider, seed.reference, 300, "NGN", time.Now())
		require.NoError(t, factory.PaymentsRepo.Save(ctx, payment))
	}

	gateway := stubGateway{verification: policies.Verification{Paid: true, Status: "success", Amount: 300, Currency: "NGN"}}
	reconciler := &reconcile.Service{
		UoWFactory: factory,
		Gateways: map[domainpayments.Provider]policies.PaymentGateway{
			domainpayments.ProviderPaystack: gateway,
			domainpayments.ProviderStripe:   gateway,
		},
		Outbox: memory.NewOutbox(),
	}
	handler := ginserver.WebhookHandler{
		Reconciler:      reconciler,
		PaystackClient:  paystack.New("https://api.paystack.co", paystackSecret),
		StripeSecret:    stripeSecret,
		StripeTolerance: 5 * time.Minute,
	}

	router := gin.New()
	router.POST("/webhooks/paystack", handler.Paystack)
	router.POST("/webhooks/stripe", handler.Stripe)
	return webhookFixture{router: router, factory: factory}
}

func signPaystack(body []byte) string {
	mac := hmac.New(sha512.New, []byte(paystackSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (f webhookFixture) post(path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func paystackBody(event, reference string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": event,
		"data":  map[string]any{"id": 302961, "reference": reference},
	})
	return body
}

func TestPaystackWebhookConfirmsBooking(t *testing.T) {
	f := newWebhookFixture(t)
	body := paystackBody("charge.success", "ref-ps")

	rec := f.post("/webhooks/paystack", body, map[string]string{"x-paystack-signature": signPaystack(body)})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK      bool              `json:"ok"`
		Outcome reconcile.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Outcome.Transitioned)

	b, err := f.factory.BookingRepo.ByID(context.Background(), "bk-ps")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateConfirmed, b.State)
}

func TestPaystackWebhookRejectsBadSignatureWithoutRecording(t *testing.T) {
	f := newWebhookFixture(t)
	body := paystackBody("charge.success", "ref-ps")

	rec := f.post("/webhooks/paystack", body, map[string]string{"x-paystack-signature": "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The rejected delivery must not occupy the ledger: the same body with a
	// valid signature still processes as a first delivery.
	rec = f.post("/webhooks/paystack", body, map[string]string{"x-paystack-signature": signPaystack(body)})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Outcome reconcile.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Outcome.Duplicate)
	assert.True(t, resp.Outcome.Transitioned)
}

func TestPaystackWebhookDeduplicatesRedelivery(t *testing.T) {
	f := newWebhookFixture(t)
	body := paystackBody("charge.success", "ref-ps")
	headers := map[string]string{"x-paystack-signature": signPaystack(body)}

	require.Equal(t, http.StatusOK, f.post("/webhooks/paystack", body, headers).Code)

	rec := f.post("/webhooks/paystack", body, headers)
	require.Equal(t, http.StatusOK, rec.Code, "duplicates are acknowledged, not errored")
	var resp struct {
		OK      bool              `json:"ok"`
		Outcome reconcile.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.Outcome.Duplicate)
}

func TestPaystackWebhookAcknowledgesUnhandledEvents(t *testing.T) {
	f := newWebhookFixture(t)
	body := paystackBody("subscription.create", "ref-ps")

	rec := f.post("/webhooks/paystack", body, map[string]string{"x-paystack-signature": signPaystack(body)})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Outcome reconcile.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Outcome.Ignored)
}

func TestPaystackWebhookWithoutSecretIs503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := ginserver.WebhookHandler{PaystackClient: paystack.New("https://api.paystack.co", "")}
	router := gin.New()
	router.POST("/webhooks/paystack", handler.Paystack)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader([]byte("{}")))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStripeWebhookConfirmsBooking(t *testing.T) {
	f := newWebhookFixture(t)
	body, _ := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{"id": "cs_test_1"}},
	})

	rec := f.post("/webhooks/stripe", body, map[string]string{
		"Stripe-Signature": stripe.SignPayload(body, stripeSecret, time.Now()),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	b, err := f.factory.BookingRepo.ByID(context.Background(), "bk-st")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateConfirmed, b.State)
}

func TestStripeWebhookRejectsTamperedBody(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1"}}}`)
	header := stripe.SignPayload(body, stripeSecret, time.Now())

	tampered := bytes.Replace(body, []byte("cs_test_1"), []byte("cs_evil_9"), 1)
	rec := f.post("/webhooks/stripe", tampered, map[string]string{"Stripe-Signature": header})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	b, err := f.factory.BookingRepo.ByID(context.Background(), "bk-st")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, b.State, "rejected delivery leaves state untouched")
}

func TestStripeWebhookRejectsStaleTimestamp(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1"}}}`)
	header := stripe.SignPayload(body, stripeSecret, time.Now().Add(-time.Hour))

	rec := f.post("/webhooks/stripe", body, map[string]string{"Stripe-Signature": header})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
