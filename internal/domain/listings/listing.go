package listings

import (
	"context"
	"errors"
)

var ErrListingNotFound = errors.New("listings: not found")

type ListingID string

// BookingPolicy carries the per-listing stay constraints enforced by the
// availability engine. PrepDays is the turnover buffer appended after each
// booking-sourced unavailable range.
type BookingPolicy struct {
	MinNights int
	MaxNights int
	PrepDays  int
}

// Listing is the slim projection the booking flow needs: policy, pricing
// inputs and the host to notify. Listing management lives elsewhere.
type Listing struct {
	ID          ListingID
	HostID      string
	HostEmail   string
	Title       string
	City        string
	Currency    string
	NightlyRate int64
	Policy      BookingPolicy
	InstantBook bool
	Active      bool
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}
