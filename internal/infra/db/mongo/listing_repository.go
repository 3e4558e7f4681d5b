package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "shortstay/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("agg_listing")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

type listingDocument struct {
	ID          string `bson:"_id"`
	HostID      string `bson:"host_id"`
	HostEmail   string `bson:"host_email"`
	Title       string `bson:"title"`
	City        string `bson:"city"`
	Currency    string `bson:"currency"`
	NightlyRate int64  `bson:"nightly_rate"`
	MinNights   int    `bson:"min_nights"`
	MaxNights   int    `bson:"max_nights"`
	PrepDays    int    `bson:"prep_days"`
	InstantBook bool   `bson:"instant_book"`
	Active      bool   `bson:"active"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		HostID:      l.HostID,
		HostEmail:   l.HostEmail,
		Title:       l.Title,
		City:        l.City,
		Currency:    l.Currency,
		NightlyRate: l.NightlyRate,
		MinNights:   l.Policy.MinNights,
		MaxNights:   l.Policy.MaxNights,
		PrepDays:    l.Policy.PrepDays,
		InstantBook: l.InstantBook,
		Active:      l.Active,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		HostID:      d.HostID,
		HostEmail:   d.HostEmail,
		Title:       d.Title,
		City:        d.City,
		Currency:    d.Currency,
		NightlyRate: d.NightlyRate,
		Policy: domainlistings.BookingPolicy{
			MinNights: d.MinNights,
			MaxNights: d.MaxNights,
			PrepDays:  d.PrepDays,
		},
		InstantBook: d.InstantBook,
		Active:      d.Active,
	}
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
