package memory

import (
	"context"
	"errors"

	"shortstay/internal/app/uow"
	domainavailability "shortstay/internal/domain/availability"
	domainbooking "shortstay/internal/domain/booking"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary. No
// isolation is provided but the shape matches the application ports.
type Factory struct {
	ListingsRepo domainlistings.Repository
	BookingRepo  domainbooking.Repository
	BlocksRepo   domainavailability.BlockRepository
	PaymentsRepo domainpayments.Repository
	Ledger       domainpayments.WebhookLedger
}

// NewFactory builds a factory over fresh in-memory stores.
func NewFactory() Factory {
	return Factory{
		ListingsRepo: NewListingRepository(),
		BookingRepo:  NewBookingRepository(),
		BlocksRepo:   NewBlockRepository(),
		PaymentsRepo: NewPaymentRepository(),
		Ledger:       NewWebhookLedger(),
	}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.BookingRepo == nil || f.BlocksRepo == nil || f.PaymentsRepo == nil || f.Ledger == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		listings: f.ListingsRepo,
		bookings: f.BookingRepo,
		blocks:   f.BlocksRepo,
		payments: f.PaymentsRepo,
		ledger:   f.Ledger,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	listings domainlistings.Repository
	bookings domainbooking.Repository
	blocks   domainavailability.BlockRepository
	payments domainpayments.Repository
	ledger   domainpayments.WebhookLedger
}

func (u *Unit) Listings() domainlistings.Repository {
	return u.listings
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Blocks() domainavailability.BlockRepository {
	return u.blocks
}

func (u *Unit) Payments() domainpayments.Repository {
	return u.payments
}

func (u *Unit) WebhookLedger() domainpayments.WebhookLedger {
	return u.ledger
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
