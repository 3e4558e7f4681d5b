package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/domain/booking"
)

func newTestBooking(t *testing.T) *booking.Booking {
	t.Helper()
	b, err := booking.NewBooking(booking.CreateParams{
		ID:          "bk-1",
		ListingID:   "lst-1",
		GuestID:     "guest-1",
		GuestEmail:  "guest@example.com",
		CheckIn:     "2025-06-10",
		CheckOut:    "2025-06-13",
		Guests:      2,
		Nights:      3,
		TotalAmount: 13500000,
		Currency:    "NGN",
		RequestTTL:  24 * time.Hour,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func TestNewBookingValidation(t *testing.T) {
	_, err := booking.NewBooking(booking.CreateParams{GuestID: "g", Guests: 0, Nights: 1, TotalAmount: 1})
	assert.ErrorIs(t, err, booking.ErrInvalidGuests)

	_, err = booking.NewBooking(booking.CreateParams{GuestID: "", Guests: 1, Nights: 1, TotalAmount: 1})
	assert.Error(t, err)

	_, err = booking.NewBooking(booking.CreateParams{GuestID: "g", Guests: 1, Nights: 0, TotalAmount: 1})
	assert.Error(t, err)
}

func TestNewBookingStartsPendingWithExpiry(t *testing.T) {
	b := newTestBooking(t)
	assert.Equal(t, booking.StatePending, b.State)
	assert.Equal(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), b.ExpiresAt)

	events := b.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.requested", events[0].EventName())
}

func TestHappyPathPendingToCompleted(t *testing.T) {
	b := newTestBooking(t)
	now := time.Now().UTC()

	require.NoError(t, b.Approve(now))
	assert.Equal(t, booking.StatePendingPayment, b.State)

	require.NoError(t, b.ConfirmPayment("ref-123", now))
	assert.Equal(t, booking.StateConfirmed, b.State)
	assert.Equal(t, "ref-123", b.PaymentRef)

	require.NoError(t, b.Complete(now))
	assert.Equal(t, booking.StateCompleted, b.State)
}

func TestConfirmPaymentRequiresPaymentWindow(t *testing.T) {
	b := newTestBooking(t)
	now := time.Now().UTC()

	assert.ErrorIs(t, b.ConfirmPayment("ref", now), booking.ErrInvalidState)

	require.NoError(t, b.Approve(now))
	require.NoError(t, b.ConfirmPayment("ref", now))

	// Second confirmation is rejected by the aggregate guard.
	assert.ErrorIs(t, b.ConfirmPayment("ref-2", now), booking.ErrInvalidState)
	assert.Equal(t, "ref", b.PaymentRef)
}

func TestDeclineOnlyFromPending(t *testing.T) {
	b := newTestBooking(t)
	now := time.Now().UTC()

	require.NoError(t, b.Approve(now))
	assert.ErrorIs(t, b.Decline("too late", now), booking.ErrInvalidState)
}

func TestCancelAllowedUntilCompleted(t *testing.T) {
	now := time.Now().UTC()

	b := newTestBooking(t)
	require.NoError(t, b.Cancel("changed plans", now))
	assert.Equal(t, booking.StateCancelled, b.State)

	b = newTestBooking(t)
	require.NoError(t, b.Approve(now))
	require.NoError(t, b.ConfirmPayment("ref", now))
	require.NoError(t, b.Complete(now))
	assert.ErrorIs(t, b.Cancel("too late", now), booking.ErrInvalidState)
}

func TestExpireOnlyWhileWaiting(t *testing.T) {
	now := time.Now().UTC()

	b := newTestBooking(t)
	require.NoError(t, b.Expire(now))
	assert.Equal(t, booking.StateExpired, b.State)

	b = newTestBooking(t)
	require.NoError(t, b.Approve(now))
	require.NoError(t, b.Expire(now))

	b = newTestBooking(t)
	require.NoError(t, b.Approve(now))
	require.NoError(t, b.ConfirmPayment("ref", now))
	assert.ErrorIs(t, b.Expire(now), booking.ErrInvalidState)
}

func TestBlocksCalendar(t *testing.T) {
	blocking := []booking.BookingState{
		booking.StatePending,
		booking.StatePendingPayment,
		booking.StateConfirmed,
		booking.StateCompleted,
	}
	for _, s := range blocking {
		assert.True(t, s.BlocksCalendar(), string(s))
	}
	released := []booking.BookingState{
		booking.StateDeclined,
		booking.StateCancelled,
		booking.StateExpired,
	}
	for _, s := range released {
		assert.False(t, s.BlocksCalendar(), string(s))
	}
}
