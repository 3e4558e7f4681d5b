package ginserver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"shortstay/internal/app/services/reconcile"
	"shortstay/internal/domain/payments"
	"shortstay/internal/infra/gateway/paystack"
	"shortstay/internal/infra/gateway/stripe"
)

const maxWebhookBody = 1 << 20

// WebhookHandler terminates gateway callbacks. Signature verification happens
// here against the raw body; everything after that is the reconciler's job.
// Both endpoints acknowledge with 200 once the event is safely recorded,
// because gateways treat any other status as an invitation to redeliver.
type WebhookHandler struct {
	Reconciler      *reconcile.Service
	PaystackClient  *paystack.Client
	StripeSecret    string
	StripeTolerance time.Duration
	Logger          *slog.Logger
}

type paystackEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		Reference string      `json:"reference"`
	} `json:"data"`
}

func (h WebhookHandler) Paystack(c *gin.Context) {
	if h.PaystackClient == nil || h.PaystackClient.SecretKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paystack webhook secret not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if !h.PaystackClient.VerifySignature(body, c.GetHeader("x-paystack-signature")) {
		h.log().Warn("paystack webhook rejected", "reason", "invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	h.process(c, reconcile.Delivery{
		Provider:    payments.ProviderPaystack,
		EventID:     envelope.Data.ID.String(),
		EventType:   envelope.Event,
		Reference:   envelope.Data.Reference,
		PayloadHash: hashPayload(body),
		ReceivedAt:  time.Now().UTC(),
	})
}

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

func (h WebhookHandler) Stripe(c *gin.Context) {
	if h.StripeSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe webhook secret not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if err := stripe.VerifySignature(body, c.GetHeader("Stripe-Signature"), h.StripeSecret, h.StripeTolerance, time.Now()); err != nil {
		h.log().Warn("stripe webhook rejected", "reason", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var envelope stripeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	h.process(c, reconcile.Delivery{
		Provider:    payments.ProviderStripe,
		EventID:     envelope.ID,
		EventType:   envelope.Type,
		Reference:   envelope.Data.Object.ID,
		PayloadHash: hashPayload(body),
		ReceivedAt:  time.Now().UTC(),
	})
}

func (h WebhookHandler) process(c *gin.Context, d reconcile.Delivery) {
	outcome, err := h.Reconciler.Process(c.Request.Context(), d)
	if err != nil {
		// Infrastructure failure before the event hit the ledger; a non-2xx
		// makes the gateway redeliver, which is what we want here.
		h.log().Error("webhook reconciliation error", "provider", d.Provider, "reference", d.Reference, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"outcome": outcome,
	})
}

func (h WebhookHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func hashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

var _ WebhookHTTP = WebhookHandler{}
