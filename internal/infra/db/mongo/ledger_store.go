package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpayments "shortstay/internal/domain/payments"
)

// WebhookLedger persists webhook deliveries with unique indexes on
// (provider, payload_hash) and (provider, event_id). The duplicate-key error
// on insert is what turns concurrent redeliveries into exactly one winner.
type WebhookLedger struct {
	col *mongo.Collection
}

func NewWebhookLedger(db *mongo.Database) *WebhookLedger {
	col := db.Collection("webhook_events")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "payload_hash", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "provider", Value: 1}, {Key: "event_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"event_id": bson.M{"$gt": ""}}),
	})
	return &WebhookLedger{col: col}
}

func (l *WebhookLedger) Insert(ctx context.Context, event *domainpayments.WebhookEvent) error {
	doc := newWebhookDocument(event)
	if _, err := l.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainpayments.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (l *WebhookLedger) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return l.mark(ctx, id, domainpayments.WebhookProcessed, "", at)
}

func (l *WebhookLedger) MarkSkipped(ctx context.Context, id string, reason string, at time.Time) error {
	return l.mark(ctx, id, domainpayments.WebhookSkipped, reason, at)
}

func (l *WebhookLedger) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	return l.mark(ctx, id, domainpayments.WebhookFailed, reason, at)
}

func (l *WebhookLedger) mark(ctx context.Context, id string, status domainpayments.WebhookStatus, reason string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":       string(status),
		"error":        reason,
		"processed_at": at.UTC().UnixMilli(),
	}}
	_, err := l.col.UpdateByID(ctx, id, update)
	return err
}

type webhookDocument struct {
	ID          string `bson:"_id"`
	Provider    string `bson:"provider"`
	EventID     string `bson:"event_id"`
	EventType   string `bson:"event_type"`
	Reference   string `bson:"reference"`
	PayloadHash string `bson:"payload_hash"`
	Status      string `bson:"status"`
	Error       string `bson:"error"`
	ReceivedAt  int64  `bson:"received_at"`
	ProcessedAt int64  `bson:"processed_at"`
}

func newWebhookDocument(e *domainpayments.WebhookEvent) webhookDocument {
	return webhookDocument{
		ID:          e.ID,
		Provider:    string(e.Provider),
		EventID:     e.EventID,
		EventType:   e.EventType,
		Reference:   e.Reference,
		PayloadHash: e.PayloadHash,
		Status:      string(e.Status),
		Error:       e.Error,
		ReceivedAt:  e.ReceivedAt.UnixMilli(),
	}
}

var _ domainpayments.WebhookLedger = (*WebhookLedger)(nil)
