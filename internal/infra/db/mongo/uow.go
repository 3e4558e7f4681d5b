package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shortstay/internal/app/uow"
	domainavailability "shortstay/internal/domain/availability"
	domainbooking "shortstay/internal/domain/booking"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo sessions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo domainlistings.Repository
	BookingRepo  domainbooking.Repository
	BlocksRepo   domainavailability.BlockRepository
	PaymentsRepo domainpayments.Repository
	Ledger       domainpayments.WebhookLedger
}

// NewFactory builds a factory with repositories over the given database.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		ListingsRepo: NewListingRepository(db),
		BookingRepo:  NewBookingRepository(db),
		BlocksRepo:   NewBlockRepository(db),
		PaymentsRepo: NewPaymentRepository(db),
		Ledger:       NewWebhookLedger(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		listings: f.ListingsRepo,
		bookings: f.BookingRepo,
		blocks:   f.BlocksRepo,
		payments: f.PaymentsRepo,
		ledger:   f.Ledger,
	}, nil
}

type Unit struct {
	session mongo.Session

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
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext makes the session visible to repositories downstream.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
