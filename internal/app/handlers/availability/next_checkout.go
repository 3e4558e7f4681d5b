package availability

import (
	"context"

	"shortstay/internal/app/dto"
	"shortstay/internal/app/queries"
	"shortstay/internal/app/uow"
	domainavailability "shortstay/internal/domain/availability"
	domainlistings "shortstay/internal/domain/listings"
	"shortstay/internal/domain/shared/datekey"
)

const nextCheckoutKey = "availability.next_checkout"

// NextCheckoutQuery suggests the nearest bookable checkout after a chosen
// check-in, so the picker can jump past an adjacent blocked range.
type NextCheckoutQuery struct {
	ListingID string
	CheckIn   string
}

func (q NextCheckoutQuery) Key() string { return nextCheckoutKey }

type NextCheckoutHandler struct {
	UoWFactory  uow.UoWFactory
	HorizonDays int
}

func (h *NextCheckoutHandler) Handle(ctx context.Context, q NextCheckoutQuery) (dto.CheckoutSuggestion, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.CheckoutSuggestion{}, err
	}
	if owned {
		defer unit.Rollback(ctx)
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.CheckoutSuggestion{}, err
	}
	ranges, err := ListingRanges(ctx, unit, listing.ID)
	if err != nil {
		return dto.CheckoutSuggestion{}, err
	}
	buffered := domainavailability.ApplyPrepBuffer(ranges, listing.Policy.PrepDays)
	disabled := domainavailability.ExpandDisabledDates(buffered, "", "")

	next := domainavailability.NextValidEndDate(domainavailability.NextEndDateQuery{
		CheckIn:         datekey.DateKey(q.CheckIn),
		Disabled:        disabled,
		MinNights:       listing.Policy.MinNights,
		MaxNights:       listing.Policy.MaxNights,
		SearchLimitDays: h.HorizonDays,
	})
	return dto.CheckoutSuggestion{CheckIn: q.CheckIn, Checkout: string(next), Found: next != ""}, nil
}

var _ queries.Handler[NextCheckoutQuery, dto.CheckoutSuggestion] = (*NextCheckoutHandler)(nil)
