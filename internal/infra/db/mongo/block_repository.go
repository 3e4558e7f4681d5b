package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "shortstay/internal/domain/availability"
	domainlistings "shortstay/internal/domain/listings"
	"shortstay/internal/domain/shared/datekey"
)

type BlockRepository struct {
	col *mongo.Collection
}

func NewBlockRepository(db *mongo.Database) *BlockRepository {
	col := db.Collection("host_blocks")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "start", Value: 1}},
	})
	return &BlockRepository{col: col}
}

func (r *BlockRepository) ByListing(ctx context.Context, id domainlistings.ListingID) ([]*domainavailability.HostBlock, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"listing_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainavailability.HostBlock
	for cursor.Next(ctx) {
		var doc blockDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *BlockRepository) Save(ctx context.Context, block *domainavailability.HostBlock) error {
	doc := newBlockDocument(block)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r *BlockRepository) Delete(ctx context.Context, listingID domainlistings.ListingID, blockID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": blockID, "listing_id": string(listingID)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainavailability.ErrBlockNotFound
	}
	return nil
}

type blockDocument struct {
	ID        string `bson:"_id"`
	ListingID string `bson:"listing_id"`
	Start     string `bson:"start"`
	End       string `bson:"end"`
	Note      string `bson:"note"`
	CreatedAt int64  `bson:"created_at"`
}

func newBlockDocument(b *domainavailability.HostBlock) blockDocument {
	return blockDocument{
		ID:        b.ID,
		ListingID: string(b.ListingID),
		Start:     string(b.Start),
		End:       string(b.End),
		Note:      b.Note,
		CreatedAt: b.CreatedAt.UnixMilli(),
	}
}

func (d blockDocument) toAggregate() *domainavailability.HostBlock {
	return &domainavailability.HostBlock{
		ID:        d.ID,
		ListingID: domainlistings.ListingID(d.ListingID),
		Start:     datekey.DateKey(d.Start),
		End:       datekey.DateKey(d.End),
		Note:      d.Note,
		CreatedAt: timestampToTime(d.CreatedAt),
	}
}

var _ domainavailability.BlockRepository = (*BlockRepository)(nil)
