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

const validateStayKey = "availability.validate_stay"

// ValidateStayQuery checks a candidate range against listing policy and the
// blocked-night set. The verdict is advisory at read time; the store-layer
// guard remains the final arbiter at booking creation.
type ValidateStayQuery struct {
	ListingID string
	CheckIn   string
	CheckOut  string
}

func (q ValidateStayQuery) Key() string { return validateStayKey }

type ValidateStayHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ValidateStayHandler) Handle(ctx context.Context, q ValidateStayQuery) (dto.StayVerdict, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.StayVerdict{}, err
	}
	if owned {
		defer unit.Rollback(ctx)
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.StayVerdict{}, err
	}
	ranges, err := ListingRanges(ctx, unit, listing.ID)
	if err != nil {
		return dto.StayVerdict{}, err
	}

	buffered := domainavailability.ApplyPrepBuffer(ranges, listing.Policy.PrepDays)
	disabled := domainavailability.ExpandDisabledDates(buffered, "", "")
	verdict := domainavailability.ValidateRangeSelection(domainavailability.SelectionQuery{
		CheckIn:   q.CheckIn,
		CheckOut:  q.CheckOut,
		Disabled:  disabled,
		MinNights: listing.Policy.MinNights,
		MaxNights: listing.Policy.MaxNights,
	})
	report := domainavailability.ResolveConflicts(domainavailability.ConflictQuery{
		CheckIn:  datekey.DateKey(q.CheckIn),
		CheckOut: datekey.DateKey(q.CheckOut),
		Ranges:   ranges,
		PrepDays: listing.Policy.PrepDays,
	})
	return dto.MapStayVerdict(verdict, report), nil
}

var _ queries.Handler[ValidateStayQuery, dto.StayVerdict] = (*ValidateStayHandler)(nil)
