package dto

import (
	"time"

	"shortstay/internal/domain/booking"
)

type Booking struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	GuestID     string    `json:"guest_id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	Guests      int       `json:"guests"`
	Nights      int       `json:"nights"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	State       string    `json:"state"`
	PaymentRef  string    `json:"payment_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func MapBooking(b *booking.Booking) Booking {
	return Booking{
		ID:          string(b.ID),
		ListingID:   string(b.ListingID),
		GuestID:     b.GuestID,
		CheckIn:     string(b.CheckIn),
		CheckOut:    string(b.CheckOut),
		Guests:      b.Guests,
		Nights:      b.Nights,
		TotalAmount: b.TotalAmount,
		Currency:    b.Currency,
		State:       string(b.State),
		PaymentRef:  b.PaymentRef,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}
