package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "shortstay/internal/domain/booking"
	domainpayments "shortstay/internal/domain/payments"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	col := db.Collection("payments")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "reference", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &PaymentRepository{col: col}
}

func (r *PaymentRepository) ByReference(ctx context.Context, provider domainpayments.Provider, reference string) (*domainpayments.Payment, error) {
	var doc paymentDocument
	filter := bson.M{"provider": string(provider), "reference": reference}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayments.ErrPaymentNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *domainpayments.Payment) error {
	doc := newPaymentDocument(p)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

type paymentDocument struct {
	ID            string `bson:"_id"`
	BookingID     string `bson:"booking_id"`
	Provider      string `bson:"provider"`
	Reference     string `bson:"reference"`
	Amount        int64  `bson:"amount"`
	Currency      string `bson:"currency"`
	State         string `bson:"state"`
	CheckoutURL   string `bson:"checkout_url"`
	PaidAt        int64  `bson:"paid_at"`
	Authorization string `bson:"authorization"`
	CustomerEmail string `bson:"customer_email"`
	FailureReason string `bson:"failure_reason"`
	CreatedAt     int64  `bson:"created_at"`
	UpdatedAt     int64  `bson:"updated_at"`
}

func newPaymentDocument(p *domainpayments.Payment) paymentDocument {
	doc := paymentDocument{
		ID:            p.ID,
		BookingID:     string(p.BookingID),
		Provider:      string(p.Provider),
		Reference:     p.Reference,
		Amount:        p.Amount,
		Currency:      p.Currency,
		State:         string(p.State),
		CheckoutURL:   p.CheckoutURL,
		Authorization: p.Authorization,
		CustomerEmail: p.CustomerEmail,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt.UnixMilli(),
		UpdatedAt:     p.UpdatedAt.UnixMilli(),
	}
	if !p.PaidAt.IsZero() {
		doc.PaidAt = p.PaidAt.UnixMilli()
	}
	return doc
}

func (d paymentDocument) toAggregate() *domainpayments.Payment {
	p := &domainpayments.Payment{
		ID:            d.ID,
		BookingID:     domainbooking.BookingID(d.BookingID),
		Provider:      domainpayments.Provider(d.Provider),
		Reference:     d.Reference,
		Amount:        d.Amount,
		Currency:      d.Currency,
		State:         domainpayments.PaymentState(d.State),
		CheckoutURL:   d.CheckoutURL,
		Authorization: d.Authorization,
		CustomerEmail: d.CustomerEmail,
		FailureReason: d.FailureReason,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
	}
	if d.PaidAt > 0 {
		p.PaidAt = timestampToTime(d.PaidAt)
	}
	return p
}

var _ domainpayments.Repository = (*PaymentRepository)(nil)
