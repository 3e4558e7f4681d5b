package booking

import (
	"context"
	"errors"
	"time"

	"shortstay/internal/domain/listings"
	"shortstay/internal/domain/shared/datekey"
	"shortstay/internal/domain/shared/events"
)

var (
	ErrInvalidState    = errors.New("booking: invalid state transition")
	ErrInvalidGuests   = errors.New("booking: guests count must be positive")
	ErrBookingNotFound = errors.New("booking: not found")
)

type BookingID string

type BookingState string

const (
	StatePending        BookingState = "PENDING"
	StatePendingPayment BookingState = "PENDING_PAYMENT"
	StateConfirmed      BookingState = "CONFIRMED"
	StateCompleted      BookingState = "COMPLETED"
	StateDeclined       BookingState = "DECLINED"
	StateCancelled      BookingState = "CANCELLED"
	StateExpired        BookingState = "EXPIRED"
)

// BlocksCalendar reports whether a booking in this state still occupies its
// date range. Declined, cancelled and expired bookings release their nights.
func (s BookingState) BlocksCalendar() bool {
	switch s {
	case StatePending, StatePendingPayment, StateConfirmed, StateCompleted:
		return true
	default:
		return false
	}
}

// Booking is the aggregate behind a stay request. State moves
// PENDING -> PENDING_PAYMENT -> CONFIRMED -> COMPLETED with side exits to
// DECLINED, CANCELLED and EXPIRED. The pending_payment -> confirmed edge is
// owned exclusively by the payment reconciler.
type Booking struct {
	ID          BookingID
	ListingID   listings.ListingID
	GuestID     string
	GuestEmail  string
	CheckIn     datekey.DateKey
	CheckOut    datekey.DateKey
	Guests      int
	Nights      int
	TotalAmount int64
	Currency    string
	State       BookingState
	PaymentRef  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	Version     int64
	events.Recorder
}

// Repository persists bookings. TransitionState implements the
// update-if-still-in-expected-state guard: it reports whether this caller
// actually performed the transition, which is what makes redelivered webhook
// events side-effect free downstream.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	ListByListing(ctx context.Context, id listings.ListingID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	TransitionState(ctx context.Context, id BookingID, from, to BookingState, now time.Time) (bool, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID          BookingID
	ListingID   listings.ListingID
	GuestID     string
	GuestEmail  string
	CheckIn     datekey.DateKey
	CheckOut    datekey.DateKey
	Guests      int
	Nights      int
	TotalAmount int64
	Currency    string
	RequestTTL  time.Duration
	CreatedAt   time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if params.GuestID == "" {
		return nil, errors.New("booking: guest id required")
	}
	if params.Nights < 1 {
		return nil, errors.New("booking: at least one night required")
	}
	if params.TotalAmount <= 0 {
		return nil, errors.New("booking: total must be positive")
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:          params.ID,
		ListingID:   params.ListingID,
		GuestID:     params.GuestID,
		GuestEmail:  params.GuestEmail,
		CheckIn:     params.CheckIn,
		CheckOut:    params.CheckOut,
		Guests:      params.Guests,
		Nights:      params.Nights,
		TotalAmount: params.TotalAmount,
		Currency:    params.Currency,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.RequestTTL > 0 {
		b.ExpiresAt = now.Add(params.RequestTTL)
	}
	b.Record(BookingRequested{BookingID: b.ID, ListingID: b.ListingID, GuestID: b.GuestID, CheckIn: b.CheckIn, CheckOut: b.CheckOut, Nights: b.Nights, Total: b.TotalAmount, At: now})
	return b, nil
}

// Approve moves a host-reviewed request into the payment window.
func (b *Booking) Approve(now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StatePendingPayment
	b.UpdatedAt = now.UTC()
	b.Record(BookingApproved{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Decline(reason string, now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateDeclined
	b.UpdatedAt = now.UTC()
	b.Record(BookingDeclined{BookingID: b.ID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// ConfirmPayment is the webhook-driven edge. Persistence-level guards
// (Repository.TransitionState) make it at-most-once; this in-memory check is
// the second safety net.
func (b *Booking) ConfirmPayment(paymentRef string, now time.Time) error {
	if b.State != StatePendingPayment {
		return ErrInvalidState
	}
	b.PaymentRef = paymentRef
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, CheckIn: b.CheckIn, CheckOut: b.CheckOut, PaymentRef: paymentRef, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Cancel(reason string, now time.Time) error {
	switch b.State {
	case StatePending, StatePendingPayment, StateConfirmed:
	default:
		return ErrInvalidState
	}
	b.State = StateCancelled
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// Expire times out a request the host never answered or the guest never paid.
func (b *Booking) Expire(now time.Time) error {
	if b.State != StatePending && b.State != StatePendingPayment {
		return ErrInvalidState
	}
	b.State = StateExpired
	b.UpdatedAt = now.UTC()
	b.Record(BookingExpired{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if b.State != StateConfirmed {
		return ErrInvalidState
	}
	b.State = StateCompleted
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}
