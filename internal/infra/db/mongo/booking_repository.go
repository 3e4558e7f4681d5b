package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "shortstay/internal/domain/booking"
	"shortstay/internal/domain/listings"
	"shortstay/internal/domain/shared/datekey"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "check_in", Value: 1}},
	})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "state", Value: 1}, {Key: "expires_at", Value: 1}},
	})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, id listings.ListingID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"listing_id": string(id)}, options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}}))
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"guest_id": guestID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainbooking.Booking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

// TransitionState is the update-if-still-in-expected-state guard. The state
// filter makes the write conditional, so with concurrent callers exactly one
// sees ModifiedCount == 1.
func (r *BookingRepository) TransitionState(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.BookingState, now time.Time) (bool, error) {
	filter := bson.M{"_id": string(id), "state": string(from)}
	update := bson.M{
		"$set": bson.M{"state": string(to), "updated_at": now.UTC().UnixMilli()},
		"$inc": bson.M{"version": int64(1)},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	// Distinguish "wrong state" from "no such booking".
	count, err := r.col.CountDocuments(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, domainbooking.ErrBookingNotFound
	}
	return false, nil
}

func (r *BookingRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"state":      bson.M{"$in": []string{string(domainbooking.StatePending), string(domainbooking.StatePendingPayment)}},
		"expires_at": bson.M{"$gt": int64(0), "$lt": cutoff.UTC().UnixMilli()},
	}
	candidates, err := r.list(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	expired := make([]*domainbooking.Booking, 0, len(candidates))
	for _, b := range candidates {
		// Guarded per booking so a concurrent payment confirmation wins.
		done, err := r.TransitionState(ctx, b.ID, b.State, domainbooking.StateExpired, cutoff)
		if err != nil {
			return nil, err
		}
		if !done {
			continue
		}
		b.ClearEvents()
		if err := b.Expire(cutoff); err == nil {
			expired = append(expired, b)
		}
	}
	return expired, nil
}

type bookingDocument struct {
	ID          string `bson:"_id"`
	ListingID   string `bson:"listing_id"`
	GuestID     string `bson:"guest_id"`
	GuestEmail  string `bson:"guest_email"`
	CheckIn     string `bson:"check_in"`
	CheckOut    string `bson:"check_out"`
	Guests      int    `bson:"guests"`
	Nights      int    `bson:"nights"`
	TotalAmount int64  `bson:"total_amount"`
	Currency    string `bson:"currency"`
	State       string `bson:"state"`
	PaymentRef  string `bson:"payment_ref"`
	CreatedAt   int64  `bson:"created_at"`
	UpdatedAt   int64  `bson:"updated_at"`
	ExpiresAt   int64  `bson:"expires_at"`
	Version     int64  `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:          string(b.ID),
		ListingID:   string(b.ListingID),
		GuestID:     b.GuestID,
		GuestEmail:  b.GuestEmail,
		CheckIn:     string(b.CheckIn),
		CheckOut:    string(b.CheckOut),
		Guests:      b.Guests,
		Nights:      b.Nights,
		TotalAmount: b.TotalAmount,
		Currency:    b.Currency,
		State:       string(b.State),
		PaymentRef:  b.PaymentRef,
		CreatedAt:   b.CreatedAt.UnixMilli(),
		UpdatedAt:   b.UpdatedAt.UnixMilli(),
		Version:     b.Version,
	}
	if !b.ExpiresAt.IsZero() {
		doc.ExpiresAt = b.ExpiresAt.UnixMilli()
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	b := &domainbooking.Booking{
		ID:          domainbooking.BookingID(d.ID),
		ListingID:   listings.ListingID(d.ListingID),
		GuestID:     d.GuestID,
		GuestEmail:  d.GuestEmail,
		CheckIn:     datekey.DateKey(d.CheckIn),
		CheckOut:    datekey.DateKey(d.CheckOut),
		Guests:      d.Guests,
		Nights:      d.Nights,
		TotalAmount: d.TotalAmount,
		Currency:    d.Currency,
		State:       domainbooking.BookingState(d.State),
		PaymentRef:  d.PaymentRef,
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
		Version:     d.Version,
	}
	if d.ExpiresAt > 0 {
		b.ExpiresAt = timestampToTime(d.ExpiresAt)
	}
	return b
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
