package memory

import (
	"context"
	"sync"

	appoutbox "shortstay/internal/app/outbox"
)

// Outbox keeps event records in memory until flushed. Used in tests and in
// memory storage mode, where nothing consumes the records.
type Outbox struct {
	mu      sync.Mutex
	records []appoutbox.EventRecord
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = nil
	return nil
}

// Pending returns a snapshot of unflushed records for assertions in tests.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := make([]appoutbox.EventRecord, len(o.records))
	copy(snapshot, o.records)
	return snapshot
}

var _ appoutbox.Outbox = (*Outbox)(nil)
