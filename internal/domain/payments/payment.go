package payments

import (
	"context"
	"errors"
	"time"

	"shortstay/internal/domain/booking"
)

var (
	ErrPaymentNotFound = errors.New("payments: not found")
	ErrInvalidState    = errors.New("payments: invalid state transition")
)

type Provider string

const (
	ProviderPaystack Provider = "paystack"
	ProviderStripe   Provider = "stripe"
)

type PaymentState string

const (
	PaymentInitialized PaymentState = "INITIALIZED"
	PaymentSucceeded   PaymentState = "SUCCEEDED"
	PaymentFailed      PaymentState = "FAILED"
)

// Payment tracks one gateway transaction for a booking. The reference is the
// gateway-side transaction id used both for checkout and for authoritative
// re-verification when the webhook lands.
type Payment struct {
	ID            string
	BookingID     booking.BookingID
	Provider      Provider
	Reference     string
	Amount        int64
	Currency      string
	State         PaymentState
	CheckoutURL   string
	PaidAt        time.Time
	Authorization string
	CustomerEmail string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPayment(id string, bookingID booking.BookingID, provider Provider, reference string, amount int64, currency string, now time.Time) *Payment {
	now = now.UTC()
	return &Payment{
		ID:        id,
		BookingID: bookingID,
		Provider:  provider,
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		State:     PaymentInitialized,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Payment) MarkSucceeded(paidAt time.Time, authorization, email string, now time.Time) error {
	if p.State != PaymentInitialized {
		return ErrInvalidState
	}
	p.State = PaymentSucceeded
	p.PaidAt = paidAt.UTC()
	p.Authorization = authorization
	p.CustomerEmail = email
	p.UpdatedAt = now.UTC()
	return nil
}

// MarkFailed records a verification failure. The booking is left alone: a
// retry or manual path handles failed payments.
func (p *Payment) MarkFailed(reason string, now time.Time) error {
	if p.State == PaymentSucceeded {
		return ErrInvalidState
	}
	p.State = PaymentFailed
	p.FailureReason = reason
	p.UpdatedAt = now.UTC()
	return nil
}

type Repository interface {
	ByReference(ctx context.Context, provider Provider, reference string) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
}
