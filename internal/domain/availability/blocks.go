package availability

import (
	"context"
	"errors"
	"time"

	"shortstay/internal/domain/listings"
	"shortstay/internal/domain/shared/datekey"
)

var (
	ErrBlockNotFound   = errors.New("availability: block not found")
	ErrDegenerateRange = errors.New("availability: start must precede end")
)

// HostBlock is a manual calendar block applied by the host. Unlike
// booking-derived ranges it is never widened by the prep buffer.
type HostBlock struct {
	ID        string
	ListingID listings.ListingID
	Start     datekey.DateKey
	End       datekey.DateKey
	Note      string
	CreatedAt time.Time
}

func NewHostBlock(id string, listingID listings.ListingID, start, end datekey.DateKey, note string, now time.Time) (*HostBlock, error) {
	if !datekey.IsValid(string(start)) || !datekey.IsValid(string(end)) {
		return nil, datekey.ErrInvalidDateKey
	}
	if datekey.Compare(start, end) >= 0 {
		return nil, ErrDegenerateRange
	}
	return &HostBlock{ID: id, ListingID: listingID, Start: start, End: end, Note: note, CreatedAt: now.UTC()}, nil
}

func (b *HostBlock) Range() UnavailableRange {
	return UnavailableRange{Start: b.Start, End: b.End, Source: SourceHostBlock}
}

type BlockRepository interface {
	ByListing(ctx context.Context, id listings.ListingID) ([]*HostBlock, error)
	Save(ctx context.Context, block *HostBlock) error
	Delete(ctx context.Context, listingID listings.ListingID, blockID string) error
}
