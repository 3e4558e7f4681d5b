package availability

import (
	"context"

	"shortstay/internal/app/dto"
	"shortstay/internal/app/policies"
	"shortstay/internal/app/queries"
	"shortstay/internal/app/uow"
	domainavailability "shortstay/internal/domain/availability"
	domainlistings "shortstay/internal/domain/listings"
	"shortstay/internal/domain/shared/datekey"
)

const getCalendarKey = "availability.calendar"

// GetCalendarQuery asks for every disabled day of a listing, optionally
// clamped to [From, To].
type GetCalendarQuery struct {
	ListingID string
	From      string
	To        string
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
	Cache      policies.CalendarCache
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	if h.Cache != nil {
		if dates, hit, err := h.Cache.Get(ctx, q.ListingID, q.From, q.To); err == nil && hit {
			disabled := make(map[datekey.DateKey]struct{}, len(dates))
			for _, d := range dates {
				disabled[d] = struct{}{}
			}
			return dto.MapCalendar(q.ListingID, q.From, q.To, disabled), nil
		}
	}

	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Calendar{}, err
	}
	if owned {
		defer unit.Rollback(ctx)
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Calendar{}, err
	}
	ranges, err := ListingRanges(ctx, unit, listing.ID)
	if err != nil {
		return dto.Calendar{}, err
	}
	ranges = domainavailability.ApplyPrepBuffer(ranges, listing.Policy.PrepDays)
	disabled := domainavailability.ExpandDisabledDates(ranges, datekey.DateKey(q.From), datekey.DateKey(q.To))

	if h.Cache != nil {
		dates := make([]datekey.DateKey, 0, len(disabled))
		for d := range disabled {
			dates = append(dates, d)
		}
		_ = h.Cache.Set(ctx, q.ListingID, q.From, q.To, dates)
	}
	return dto.MapCalendar(q.ListingID, q.From, q.To, disabled), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
