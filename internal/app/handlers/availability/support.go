package availability

import (
	"context"

	"shortstay/internal/app/uow"
	domainavailability "shortstay/internal/domain/availability"
	domainlistings "shortstay/internal/domain/listings"
)

// ListingRanges derives the unavailable ranges for a listing from its live
// bookings and host blocks. Rows are shaped into typed ranges here, at the
// boundary; the engine never sees raw store rows.
func ListingRanges(ctx context.Context, unit uow.UnitOfWork, id domainlistings.ListingID) ([]domainavailability.UnavailableRange, error) {
	bookings, err := unit.Bookings().ListByListing(ctx, id)
	if err != nil {
		return nil, err
	}
	var ranges []domainavailability.UnavailableRange
	for _, b := range bookings {
		if !b.State.BlocksCalendar() {
			continue
		}
		ranges = append(ranges, domainavailability.UnavailableRange{
			Start:     b.CheckIn,
			End:       b.CheckOut,
			Source:    domainavailability.SourceBooking,
			BookingID: string(b.ID),
		})
	}
	blocks, err := unit.Blocks().ByListing(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, blk := range blocks {
		ranges = append(ranges, blk.Range())
	}
	return ranges, nil
}
