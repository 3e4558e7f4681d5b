package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/app/policies"
	"shortstay/internal/app/services/reconcile"
	domainbooking "shortstay/internal/domain/booking"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
	"shortstay/internal/infra/storage/memory"
)

type fakeGateway struct {
	verification policies.Verification
	err          error
	verifyCalls  int
}

func (g *fakeGateway) Initialize(ctx context.Context, reference, email string, amount int64, currency string) (policies.Checkout, error) {
	return policies.Checkout{Reference: reference}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (policies.Verification, error) {
	g.verifyCalls++
	if g.err != nil {
		return policies.Verification{}, g.err
	}
	return g.verification, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (n *fakeNotifier) Send(ctx context.Context, to, template string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, template+":"+to)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

type fixture struct {
	service  *reconcile.Service
	factory  memory.Factory
	gateway  *fakeGateway
	notifier *fakeNotifier
	box      *memory.Outbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	factory := memory.NewFactory()
	gateway := &fakeGateway{verification: policies.Verification{
		Paid:     true,
		Status:   "success",
		Amount:   13500000,
		Currency: "NGN",
		PaidAt:   time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC),
	}}
	notifier := &fakeNotifier{}
	box := memory.NewOutbox()

	ctx := context.Background()
	listing := &domainlistings.Listing{
		ID:        "lst-1",
		HostID:    "host-1",
		HostEmail: "host@example.com",
		Currency:  "NGN",
		Active:    true,
	}
	require.NoError(t, factory.ListingsRepo.Save(ctx, listing))

	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:          "bk-1",
		ListingID:   "lst-1",
		GuestID:     "guest-1",
		GuestEmail:  "guest@example.com",
		CheckIn:     "2025-06-10",
		CheckOut:    "2025-06-13",
		Guests:      2,
		Nights:      3,
		TotalAmount: 13500000,
		Currency:    "NGN",
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, b.Approve(time.Now()))
	require.NoError(t, factory.BookingRepo.Save(ctx, b))

	payment := domainpayments.NewPayment("pay-1", "bk-1", domainpayments.ProviderPaystack, "ref-1", 13500000, "NGN", time.Now())
	require.NoError(t, factory.PaymentsRepo.Save(ctx, payment))

	return fixture{
		service: &reconcile.Service{
			UoWFactory: factory,
			Gateways:   map[domainpayments.Provider]policies.PaymentGateway{domainpayments.ProviderPaystack: gateway},
			Notifier:   notifier,
			Outbox:     box,
			Cache:      nil,
		},
		factory:  factory,
		gateway:  gateway,
		notifier: notifier,
		box:      box,
	}
}

func delivery(hash string) reconcile.Delivery {
	return reconcile.Delivery{
		Provider:    domainpayments.ProviderPaystack,
		EventID:     "",
		EventType:   "charge.success",
		Reference:   "ref-1",
		PayloadHash: hash,
		ReceivedAt:  time.Now(),
	}
}

func TestProcessConfirmsBookingOnVerifiedSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	assert.True(t, outcome.Transitioned)

	b, err := f.factory.BookingRepo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateConfirmed, b.State)

	p, err := f.factory.PaymentsRepo.ByReference(ctx, domainpayments.ProviderPaystack, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.PaymentSucceeded, p.State)

	// Guest and host each get exactly one confirmation mail.
	assert.Equal(t, 2, f.notifier.count())

	records := f.box.Pending()
	require.Len(t, records, 1)
	assert.Equal(t, "booking.confirmed", records[0].Name)
}

func TestProcessDuplicateDeliveryIsSideEffectFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	sendsAfterFirst := f.notifier.count()
	verifiesAfterFirst := f.gateway.verifyCalls

	outcome, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	assert.True(t, outcome.Duplicate)
	assert.False(t, outcome.Transitioned)

	assert.Equal(t, sendsAfterFirst, f.notifier.count(), "no second notification")
	assert.Equal(t, verifiesAfterFirst, f.gateway.verifyCalls, "no second gateway verification")
	assert.Len(t, f.box.Pending(), 1)
}

func TestProcessRedeliveryWithFreshPayloadLosesTheTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	sendsAfterFirst := f.notifier.count()

	// Same logical event, different raw body (gateways re-serialize on
	// redelivery), so the ledger accepts it. The guarded transition then
	// reports that someone else already confirmed.
	outcome, err := f.service.Process(ctx, delivery("hash-b"))
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.False(t, outcome.Transitioned)
	assert.Equal(t, "already_confirmed", outcome.Reason)

	assert.Equal(t, sendsAfterFirst, f.notifier.count(), "notifications fire only for the winning transition")
}

func TestProcessFailureEventMarksPaymentFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := delivery("hash-a")
	d.EventType = "charge.failed"
	outcome, err := f.service.Process(ctx, d)
	require.NoError(t, err)
	assert.False(t, outcome.Transitioned)

	p, err := f.factory.PaymentsRepo.ByReference(ctx, domainpayments.ProviderPaystack, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.PaymentFailed, p.State)

	// Booking stays in its payment window for a retry or manual resolution.
	b, err := f.factory.BookingRepo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, b.State)
	assert.Equal(t, 0, f.gateway.verifyCalls, "failure events skip verification")
}

func TestProcessDoesNotTrustUnverifiedSuccess(t *testing.T) {
	f := newFixture(t)
	f.gateway.verification = policies.Verification{Paid: false, Status: "abandoned"}
	ctx := context.Background()

	outcome, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	assert.True(t, outcome.Failed)
	assert.Equal(t, "not_paid", outcome.Reason)

	b, err := f.factory.BookingRepo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, b.State)
	assert.Equal(t, 0, f.notifier.count())
}

func TestProcessRejectsAmountMismatch(t *testing.T) {
	f := newFixture(t)
	f.gateway.verification.Amount = 100
	ctx := context.Background()

	outcome, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	assert.True(t, outcome.Failed)
	assert.Equal(t, "amount_mismatch", outcome.Reason)

	p, err := f.factory.PaymentsRepo.ByReference(ctx, domainpayments.ProviderPaystack, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, domainpayments.PaymentFailed, p.State)

	b, err := f.factory.BookingRepo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, b.State)
}

func TestProcessIgnoresUnhandledEventTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := delivery("hash-a")
	d.EventType = "subscription.create"
	outcome, err := f.service.Process(ctx, d)
	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
	assert.Equal(t, 0, f.gateway.verifyCalls)
}

func TestProcessAcknowledgesVerificationOutage(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("gateway 503")
	ctx := context.Background()

	// The event is recorded as failed and acknowledged; the gateway's
	// redelivery (with a fresh body) will retry the settlement.
	outcome, err := f.service.Process(ctx, delivery("hash-a"))
	require.NoError(t, err)
	assert.True(t, outcome.Failed)

	b, err := f.factory.BookingRepo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, b.State)
}

func TestProcessAcknowledgesUnknownReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := delivery("hash-a")
	d.Reference = "ref-unknown"
	outcome, err := f.service.Process(ctx, d)
	require.NoError(t, err)
	assert.True(t, outcome.Failed)
	assert.Contains(t, outcome.Reason, "ref-unknown")
}
