package uow

import (
	"context"

	domainavailability "shortstay/internal/domain/availability"
	domainbooking "shortstay/internal/domain/booking"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
)

// UnitOfWork coordinates repositories inside one transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Bookings() domainbooking.Repository
	Blocks() domainavailability.BlockRepository
	Payments() domainpayments.Repository
	WebhookLedger() domainpayments.WebhookLedger

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
