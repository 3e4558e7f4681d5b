package booking

import (
	"context"
	"errors"
	"time"

	"shortstay/internal/app/commands"
	"shortstay/internal/app/outbox"
	"shortstay/internal/app/policies"
	"shortstay/internal/app/uow"
	domainbooking "shortstay/internal/domain/booking"
	domainpayments "shortstay/internal/domain/payments"
)

const (
	approveBookingKey = "booking.approve"
	declineBookingKey = "booking.decline"
	cancelBookingKey  = "booking.cancel"
)

var ErrNotBookingHost = errors.New("booking: only the listing host may decide a request")

// ApproveBookingCommand moves a pending request into its payment window and
// opens a gateway checkout for the guest.
type ApproveBookingCommand struct {
	BookingID string
	HostID    string
}

func (c ApproveBookingCommand) Key() string { return approveBookingKey }

type DecisionResult struct {
	BookingID   string `json:"booking_id"`
	State       string `json:"state"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

type ApproveBookingHandler struct {
	UoWFactory uow.UoWFactory
	Gateways   map[domainpayments.Provider]policies.PaymentGateway
	Provider   domainpayments.Provider
	Outbox     outbox.Outbox
	Notifier   policies.Notifier
}

func (h *ApproveBookingHandler) Handle(ctx context.Context, cmd ApproveBookingCommand) (*DecisionResult, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	if owned {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if err := requireHost(ctx, unit, b, cmd.HostID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := b.Approve(now); err != nil {
		return nil, err
	}
	payment, err := initializePayment(ctx, unit, h.Gateways, h.Provider, b, now)
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, &b.Recorder); err != nil {
		return nil, err
	}
	if owned {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	if h.Notifier != nil && b.GuestEmail != "" {
		_ = h.Notifier.Send(ctx, b.GuestEmail, "booking_approved", map[string]any{
			"booking_id":   string(b.ID),
			"checkout_url": payment.CheckoutURL,
		})
	}
	return &DecisionResult{BookingID: string(b.ID), State: string(b.State), PaymentRef: payment.Reference, CheckoutURL: payment.CheckoutURL}, nil
}

// DeclineBookingCommand is the host's rejection of a pending request.
type DeclineBookingCommand struct {
	BookingID string
	HostID    string
	Reason    string
}

func (c DeclineBookingCommand) Key() string { return declineBookingKey }

type DeclineBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Notifier   policies.Notifier
}

func (h *DeclineBookingHandler) Handle(ctx context.Context, cmd DeclineBookingCommand) (*DecisionResult, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	if owned {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if err := requireHost(ctx, unit, b, cmd.HostID); err != nil {
		return nil, err
	}

	if err := b.Decline(cmd.Reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, &b.Recorder); err != nil {
		return nil, err
	}
	if owned {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	if h.Notifier != nil && b.GuestEmail != "" {
		_ = h.Notifier.Send(ctx, b.GuestEmail, "booking_declined", map[string]any{
			"booking_id": string(b.ID),
			"reason":     cmd.Reason,
		})
	}
	return &DecisionResult{BookingID: string(b.ID), State: string(b.State)}, nil
}

// CancelBookingCommand is the guest backing out of their own request.
type CancelBookingCommand struct {
	BookingID string
	GuestID   string
	Reason    string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Cache      policies.CalendarCache
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*DecisionResult, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	if owned {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if cmd.GuestID != "" && b.GuestID != cmd.GuestID {
		return nil, domainbooking.ErrBookingNotFound
	}

	if err := b.Cancel(cmd.Reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, &b.Recorder); err != nil {
		return nil, err
	}
	if owned {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	if h.Cache != nil {
		_ = h.Cache.Invalidate(ctx, string(b.ListingID))
	}
	return &DecisionResult{BookingID: string(b.ID), State: string(b.State)}, nil
}

func requireHost(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, hostID string) error {
	if hostID == "" {
		return nil
	}
	listing, err := unit.Listings().ByID(ctx, b.ListingID)
	if err != nil {
		return err
	}
	if listing.HostID != hostID {
		return ErrNotBookingHost
	}
	return nil
}

var _ commands.Handler[ApproveBookingCommand, *DecisionResult] = (*ApproveBookingHandler)(nil)
var _ commands.Handler[DeclineBookingCommand, *DecisionResult] = (*DeclineBookingHandler)(nil)
var _ commands.Handler[CancelBookingCommand, *DecisionResult] = (*CancelBookingHandler)(nil)
