package booking

import (
	"context"

	"shortstay/internal/app/dto"
	"shortstay/internal/app/queries"
	"shortstay/internal/app/uow"
	domainbooking "shortstay/internal/domain/booking"
)

const getBookingKey = "booking.get"

// GetBookingQuery is how guests poll for the asynchronous payment outcome:
// the state flips to CONFIRMED once the webhook reconciler has done its work.
type GetBookingQuery struct {
	BookingID string
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Booking{}, err
	}
	if owned {
		defer unit.Rollback(ctx)
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b), nil
}

var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
