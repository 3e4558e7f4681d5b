package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"shortstay/internal/domain/shared/events"
)

// EventRecord is the serialized form of a domain event awaiting publication.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

// Encode serializes a domain event into an outbox record.
func Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		ID:         uuid.NewString(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// Drain records every pending event of the recorder into the outbox and
// clears the recorder on success.
func Drain(ctx context.Context, box Outbox, recorder *events.Recorder) error {
	if box == nil || recorder == nil {
		return nil
	}
	for _, ev := range recorder.PendingEvents() {
		rec, err := Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	recorder.ClearEvents()
	return nil
}
