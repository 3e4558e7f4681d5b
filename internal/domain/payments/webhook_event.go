package payments

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateEvent signals the ledger already holds this delivery. The
// unique-constraint violation on insert is the sole serialization point for
// concurrent redeliveries of the same gateway event.
var ErrDuplicateEvent = errors.New("payments: webhook event already recorded")

type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "RECEIVED"
	WebhookProcessed WebhookStatus = "PROCESSED"
	WebhookSkipped   WebhookStatus = "SKIPPED"
	WebhookFailed    WebhookStatus = "FAILED"
)

// WebhookEvent is the deduplication ledger row for one gateway delivery,
// keyed by (provider, payload hash) and, when the gateway supplies one,
// (provider, event id). Rows are never deleted: they are the audit trail.
type WebhookEvent struct {
	ID          string
	Provider    Provider
	EventID     string
	EventType   string
	Reference   string
	PayloadHash string
	Status      WebhookStatus
	Error       string
	ReceivedAt  time.Time
	ProcessedAt time.Time
}

// WebhookLedger records deliveries before any side effect is produced.
// Insert must fail with ErrDuplicateEvent for an already-seen delivery.
type WebhookLedger interface {
	Insert(ctx context.Context, event *WebhookEvent) error
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	MarkSkipped(ctx context.Context, id string, reason string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
}
