package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shortstay/internal/app/commands"
	availabilityapp "shortstay/internal/app/handlers/availability"
	"shortstay/internal/app/middleware"
	"shortstay/internal/app/outbox"
	"shortstay/internal/app/policies"
	"shortstay/internal/app/uow"
	domainavailability "shortstay/internal/domain/availability"
	domainbooking "shortstay/internal/domain/booking"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
	"shortstay/internal/domain/shared/datekey"
)

const requestBookingKey = "booking.request"

var (
	ErrListingInactive = errors.New("booking: listing is not accepting bookings")
	// ErrRangeRejected wraps the engine's structured reason for HTTP mapping.
	ErrRangeRejected = errors.New("booking: stay range rejected")
)

// RangeRejectedError carries the validation reason to the transport layer.
type RangeRejectedError struct {
	Reason domainavailability.SelectionReason
}

func (e RangeRejectedError) Error() string {
	return fmt.Sprintf("booking: stay range rejected: %s", e.Reason)
}

func (e RangeRejectedError) Unwrap() error { return ErrRangeRejected }

type RequestBookingCommand struct {
	CommandID       string
	ListingID       string
	GuestID         string
	GuestEmail      string
	CheckIn         string
	CheckOut        string
	Guests          int
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string { return requestBookingKey }

func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestBookingCommand) ResultPrototype() any { return &RequestBookingResult{} }

type RequestBookingResult struct {
	BookingID   string `json:"booking_id"`
	State       string `json:"state"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// RequestBookingHandler creates a stay request after the availability engine
// clears the range. Instant-book listings go straight to the payment window;
// host-review listings wait in PENDING.
type RequestBookingHandler struct {
	UoWFactory uow.UoWFactory
	Gateways   map[domainpayments.Provider]policies.PaymentGateway
	Provider   domainpayments.Provider
	Outbox     outbox.Outbox
	RequestTTL time.Duration
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*RequestBookingResult, error) {
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

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	if !listing.Active {
		return nil, ErrListingInactive
	}

	ranges, err := availabilityapp.ListingRanges(ctx, unit, listing.ID)
	if err != nil {
		return nil, err
	}
	buffered := domainavailability.ApplyPrepBuffer(ranges, listing.Policy.PrepDays)
	disabled := domainavailability.ExpandDisabledDates(buffered, "", "")
	verdict := domainavailability.ValidateRangeSelection(domainavailability.SelectionQuery{
		CheckIn:   cmd.CheckIn,
		CheckOut:  cmd.CheckOut,
		Disabled:  disabled,
		MinNights: listing.Policy.MinNights,
		MaxNights: listing.Policy.MaxNights,
	})
	if !verdict.Valid {
		return nil, RangeRejectedError{Reason: verdict.Reason}
	}

	now := time.Now().UTC()
	id := cmd.CommandID
	if id == "" {
		id = uuid.NewString()
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:          domainbooking.BookingID(id),
		ListingID:   listing.ID,
		GuestID:     cmd.GuestID,
		GuestEmail:  cmd.GuestEmail,
		CheckIn:     datekey.DateKey(cmd.CheckIn),
		CheckOut:    datekey.DateKey(cmd.CheckOut),
		Guests:      cmd.Guests,
		Nights:      verdict.Nights,
		TotalAmount: int64(verdict.Nights) * listing.NightlyRate,
		Currency:    listing.Currency,
		RequestTTL:  h.RequestTTL,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	result := &RequestBookingResult{BookingID: string(b.ID), State: string(b.State)}
	if listing.InstantBook {
		if err := b.Approve(now); err != nil {
			return nil, err
		}
		payment, err := initializePayment(ctx, unit, h.Gateways, h.Provider, b, now)
		if err != nil {
			return nil, err
		}
		result.State = string(b.State)
		result.PaymentRef = payment.Reference
		result.CheckoutURL = payment.CheckoutURL
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
	return result, nil
}

// initializePayment opens a gateway checkout session for a booking entering
// the payment window and records the payment row keyed by its reference.
func initializePayment(ctx context.Context, unit uow.UnitOfWork, gateways map[domainpayments.Provider]policies.PaymentGateway, provider domainpayments.Provider, b *domainbooking.Booking, now time.Time) (*domainpayments.Payment, error) {
	gateway, ok := gateways[provider]
	if !ok {
		return nil, fmt.Errorf("booking: no gateway configured for provider %q", provider)
	}
	reference := uuid.NewString()
	checkout, err := gateway.Initialize(ctx, reference, b.GuestEmail, b.TotalAmount, b.Currency)
	if err != nil {
		return nil, fmt.Errorf("booking: payment initialization failed: %w", err)
	}
	if checkout.Reference != "" {
		reference = checkout.Reference
	}
	payment := domainpayments.NewPayment(uuid.NewString(), b.ID, provider, reference, b.TotalAmount, b.Currency, now)
	payment.CheckoutURL = checkout.CheckoutURL
	if err := unit.Payments().Save(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

var _ commands.Handler[RequestBookingCommand, *RequestBookingResult] = (*RequestBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*RequestBookingCommand)(nil)
