package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainavailability "shortstay/internal/domain/availability"
	domainbooking "shortstay/internal/domain/booking"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
	"shortstay/internal/domain/shared/events"
)

// ListingRepository is an in-memory implementation for tests and demo mode.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlistings.ListingID]domainlistings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	copied := listing
	return &copied, nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = *listing
	return nil
}

// BookingRepository stores bookings in memory. Values are copied on the way
// in and out so aggregate mutations only land through Save, which keeps the
// guarded TransitionState semantics honest even without a real database.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	copied := b
	copied.Recorder = events.Recorder{}
	return &copied, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.Version++
	stored := *b
	stored.Recorder = events.Recorder{}
	r.items[b.ID] = stored
	return nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, id domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.ListingID != id {
			continue
		}
		copied := b
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CheckIn < matches[j].CheckIn
	})
	return matches, nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.GuestID != guestID {
			continue
		}
		copied := b
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

// TransitionState flips state only when the stored booking is still in the
// expected source state. Exactly one concurrent caller observes true.
func (r *BookingRepository) TransitionState(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.BookingState, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return false, domainbooking.ErrBookingNotFound
	}
	if b.State != from {
		return false, nil
	}
	b.State = to
	b.UpdatedAt = now.UTC()
	b.Version++
	r.items[id] = b
	return true, nil
}

func (r *BookingRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expired := make([]*domainbooking.Booking, 0)
	for id, b := range r.items {
		if b.ExpiresAt.IsZero() || !b.ExpiresAt.Before(cutoff) {
			continue
		}
		if b.State != domainbooking.StatePending && b.State != domainbooking.StatePendingPayment {
			continue
		}
		copied := b
		copied.Recorder = events.Recorder{}
		if err := copied.Expire(cutoff); err != nil {
			continue
		}
		stored := copied
		stored.Recorder = events.Recorder{}
		stored.Version++
		r.items[id] = stored
		result := copied
		expired = append(expired, &result)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ID < expired[j].ID
	})
	return expired, nil
}

// BlockRepository keeps host calendar blocks in memory.
type BlockRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]map[string]domainavailability.HostBlock
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{items: make(map[domainlistings.ListingID]map[string]domainavailability.HostBlock)}
}

func (r *BlockRepository) ByListing(ctx context.Context, id domainlistings.ListingID) ([]*domainavailability.HostBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blocks := make([]*domainavailability.HostBlock, 0, len(r.items[id]))
	for _, block := range r.items[id] {
		copied := block
		blocks = append(blocks, &copied)
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Start < blocks[j].Start
	})
	return blocks, nil
}

func (r *BlockRepository) Save(ctx context.Context, block *domainavailability.HostBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[block.ListingID] == nil {
		r.items[block.ListingID] = make(map[string]domainavailability.HostBlock)
	}
	r.items[block.ListingID][block.ID] = *block
	return nil
}

func (r *BlockRepository) Delete(ctx context.Context, listingID domainlistings.ListingID, blockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	blocks, ok := r.items[listingID]
	if !ok {
		return domainavailability.ErrBlockNotFound
	}
	if _, ok := blocks[blockID]; !ok {
		return domainavailability.ErrBlockNotFound
	}
	delete(blocks, blockID)
	return nil
}

// PaymentRepository stores payments keyed by (provider, reference).
type PaymentRepository struct {
	mu    sync.RWMutex
	items map[string]domainpayments.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{items: make(map[string]domainpayments.Payment)}
}

func paymentKey(provider domainpayments.Provider, reference string) string {
	return string(provider) + ":" + reference
}

func (r *PaymentRepository) ByReference(ctx context.Context, provider domainpayments.Provider, reference string) (*domainpayments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[paymentKey(provider, reference)]
	if !ok {
		return nil, domainpayments.ErrPaymentNotFound
	}
	copied := p
	return &copied, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *domainpayments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[paymentKey(p.Provider, p.Reference)] = *p
	return nil
}

var (
	_ domainlistings.Repository          = (*ListingRepository)(nil)
	_ domainbooking.Repository           = (*BookingRepository)(nil)
	_ domainavailability.BlockRepository = (*BlockRepository)(nil)
	_ domainpayments.Repository          = (*PaymentRepository)(nil)
)
