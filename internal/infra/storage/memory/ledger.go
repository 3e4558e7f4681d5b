package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	domainpayments "shortstay/internal/domain/payments"
)

var errLedgerEntryNotFound = errors.New("memory: webhook event not found")

// WebhookLedger deduplicates deliveries by (provider, payload hash) and, when
// the gateway supplies one, (provider, event id). Mirrors the unique indexes
// the mongo ledger relies on.
type WebhookLedger struct {
	mu      sync.Mutex
	byID    map[string]*domainpayments.WebhookEvent
	byHash  map[string]string
	byEvent map[string]string
}

func NewWebhookLedger() *WebhookLedger {
	return &WebhookLedger{
		byID:    make(map[string]*domainpayments.WebhookEvent),
		byHash:  make(map[string]string),
		byEvent: make(map[string]string),
	}
}

func (l *WebhookLedger) Insert(ctx context.Context, event *domainpayments.WebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	hashKey := string(event.Provider) + ":" + event.PayloadHash
	if _, ok := l.byHash[hashKey]; ok {
		return domainpayments.ErrDuplicateEvent
	}
	var eventKey string
	if event.EventID != "" {
		eventKey = string(event.Provider) + ":" + event.EventID
		if _, ok := l.byEvent[eventKey]; ok {
			return domainpayments.ErrDuplicateEvent
		}
	}
	copied := *event
	l.byID[event.ID] = &copied
	l.byHash[hashKey] = event.ID
	if eventKey != "" {
		l.byEvent[eventKey] = event.ID
	}
	return nil
}

func (l *WebhookLedger) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return l.mark(id, domainpayments.WebhookProcessed, "", at)
}

func (l *WebhookLedger) MarkSkipped(ctx context.Context, id string, reason string, at time.Time) error {
	return l.mark(id, domainpayments.WebhookSkipped, reason, at)
}

func (l *WebhookLedger) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	return l.mark(id, domainpayments.WebhookFailed, reason, at)
}

func (l *WebhookLedger) mark(id string, status domainpayments.WebhookStatus, reason string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.byID[id]
	if !ok {
		return errLedgerEntryNotFound
	}
	event.Status = status
	event.Error = reason
	event.ProcessedAt = at.UTC()
	return nil
}

// Find returns the recorded event for assertions in tests.
func (l *WebhookLedger) Find(id string) (*domainpayments.WebhookEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	copied := *event
	return &copied, true
}

var _ domainpayments.WebhookLedger = (*WebhookLedger)(nil)
