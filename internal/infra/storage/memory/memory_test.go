package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "shortstay/internal/domain/booking"
	domainpayments "shortstay/internal/domain/payments"
	"shortstay/internal/infra/storage/memory"
)

func seedBooking(t *testing.T, repo *memory.BookingRepository, id string, ttl time.Duration) *domainbooking.Booking {
	t.Helper()
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:          domainbooking.BookingID(id),
		ListingID:   "lst-1",
		GuestID:     "guest-1",
		CheckIn:     "2025-06-10",
		CheckOut:    "2025-06-13",
		Guests:      2,
		Nights:      3,
		TotalAmount: 300,
		Currency:    "NGN",
		RequestTTL:  ttl,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), b))
	return b
}

func TestTransitionStateGuardsSourceState(t *testing.T) {
	repo := memory.NewBookingRepository()
	seedBooking(t, repo, "bk-1", 0)
	ctx := context.Background()
	now := time.Now()

	ok, err := repo.TransitionState(ctx, "bk-1", domainbooking.StatePending, domainbooking.StatePendingPayment, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// The losing caller sees the state already moved.
	ok, err = repo.TransitionState(ctx, "bk-1", domainbooking.StatePending, domainbooking.StatePendingPayment, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.TransitionState(ctx, "bk-missing", domainbooking.StatePending, domainbooking.StateExpired, now)
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)

	b, err := repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, b.State)
}

func TestMutationsOnlyLandThroughSave(t *testing.T) {
	repo := memory.NewBookingRepository()
	seedBooking(t, repo, "bk-1", 0)
	ctx := context.Background()

	loaded, err := repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	require.NoError(t, loaded.Approve(time.Now()))

	again, err := repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePending, again.State, "unsaved aggregate changes must not leak into the store")

	require.NoError(t, repo.Save(ctx, loaded))
	again, err = repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePendingPayment, again.State)
}

func TestExpirePendingBefore(t *testing.T) {
	repo := memory.NewBookingRepository()
	ctx := context.Background()

	seedBooking(t, repo, "bk-stale", 24*time.Hour)
	fresh := seedBooking(t, repo, "bk-fresh", 30*24*time.Hour)
	confirmed := seedBooking(t, repo, "bk-confirmed", 24*time.Hour)
	require.NoError(t, confirmed.Approve(time.Now()))
	require.NoError(t, confirmed.ConfirmPayment("ref", time.Now()))
	require.NoError(t, repo.Save(ctx, confirmed))

	cutoff := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	expired, err := repo.ExpirePendingBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, domainbooking.BookingID("bk-stale"), expired[0].ID)
	assert.Equal(t, domainbooking.StateExpired, expired[0].State)

	events := expired[0].PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.expired", events[0].EventName())

	b, err := repo.ByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatePending, b.State)

	b, err = repo.ByID(ctx, "bk-confirmed")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateConfirmed, b.State)
}

func TestWebhookLedgerDeduplicates(t *testing.T) {
	ledger := memory.NewWebhookLedger()
	ctx := context.Background()
	now := time.Now()

	first := &domainpayments.WebhookEvent{
		ID:          "evt-row-1",
		Provider:    domainpayments.ProviderPaystack,
		EventID:     "evt_1",
		EventType:   "charge.success",
		Reference:   "ref-1",
		PayloadHash: "hash-a",
		Status:      domainpayments.WebhookReceived,
		ReceivedAt:  now,
	}
	require.NoError(t, ledger.Insert(ctx, first))

	// Byte-identical redelivery collides on the payload hash.
	dup := *first
	dup.ID = "evt-row-2"
	assert.ErrorIs(t, ledger.Insert(ctx, &dup), domainpayments.ErrDuplicateEvent)

	// Re-serialized body, same gateway event id.
	reser := *first
	reser.ID = "evt-row-3"
	reser.PayloadHash = "hash-b"
	assert.ErrorIs(t, ledger.Insert(ctx, &reser), domainpayments.ErrDuplicateEvent)

	// Same hash under another provider is a distinct delivery.
	other := *first
	other.ID = "evt-row-4"
	other.Provider = domainpayments.ProviderStripe
	assert.NoError(t, ledger.Insert(ctx, &other))
}

func TestWebhookLedgerEmptyEventIDNeverCollides(t *testing.T) {
	ledger := memory.NewWebhookLedger()
	ctx := context.Background()

	a := &domainpayments.WebhookEvent{
		ID: "row-1", Provider: domainpayments.ProviderPaystack,
		PayloadHash: "hash-a", Status: domainpayments.WebhookReceived,
	}
	b := &domainpayments.WebhookEvent{
		ID: "row-2", Provider: domainpayments.ProviderPaystack,
		PayloadHash: "hash-b", Status: domainpayments.WebhookReceived,
	}
	require.NoError(t, ledger.Insert(ctx, a))
	assert.NoError(t, ledger.Insert(ctx, b), "events without a gateway id dedupe on hash only")
}

func TestWebhookLedgerMarks(t *testing.T) {
	ledger := memory.NewWebhookLedger()
	ctx := context.Background()
	now := time.Now()

	evt := &domainpayments.WebhookEvent{
		ID: "row-1", Provider: domainpayments.ProviderPaystack,
		PayloadHash: "hash-a", Status: domainpayments.WebhookReceived,
	}
	require.NoError(t, ledger.Insert(ctx, evt))
	require.NoError(t, ledger.MarkSkipped(ctx, "row-1", "unhandled_event", now))

	stored, ok := ledger.Find("row-1")
	require.True(t, ok)
	assert.Equal(t, domainpayments.WebhookSkipped, stored.Status)
	assert.Equal(t, "unhandled_event", stored.Error)

	assert.Error(t, ledger.MarkProcessed(ctx, "row-missing", now))
}
