package policies

import (
	"context"
	"time"
)

// Checkout is the gateway-side session created for a pending payment.
type Checkout struct {
	Reference   string
	CheckoutURL string
}

// Verification is the gateway's authoritative answer for a transaction
// reference. Webhook payloads are never trusted on their own; the reconciler
// always re-verifies through this call.
type Verification struct {
	Paid          bool
	Status        string
	Amount        int64
	Currency      string
	PaidAt        time.Time
	Authorization string
	CustomerEmail string
}

// PaymentGateway abstracts one payment provider (Paystack, Stripe).
type PaymentGateway interface {
	Initialize(ctx context.Context, reference, email string, amount int64, currency string) (Checkout, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}
