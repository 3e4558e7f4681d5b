package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shortstay/internal/app/outbox"
	"shortstay/internal/app/policies"
	"shortstay/internal/app/uow"
	domainbooking "shortstay/internal/domain/booking"
	domainpayments "shortstay/internal/domain/payments"
)

// Delivery is one webhook event after signature verification. PayloadHash is
// the hex digest of the raw body; EventID is the gateway's own id when the
// provider supplies one.
type Delivery struct {
	Provider    domainpayments.Provider
	EventID     string
	EventType   string
	Reference   string
	PayloadHash string
	ReceivedAt  time.Time
}

// Outcome is always an acknowledgement. Gateways retry on non-2xx, so every
// application-level failure is absorbed here and recorded on the ledger.
type Outcome struct {
	Duplicate    bool   `json:"duplicate,omitempty"`
	Ignored      bool   `json:"ignored,omitempty"`
	Transitioned bool   `json:"transitioned,omitempty"`
	Failed       bool   `json:"failed,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// successEvents and failureEvents are the only event types that drive state.
// Everything else is acknowledged and marked skipped so the gateway stops
// redelivering it.
var successEvents = map[string]bool{
	"charge.success":             true,
	"checkout.session.completed": true,
}

var failureEvents = map[string]bool{
	"charge.failed":                         true,
	"checkout.session.async_payment_failed": true,
}

// Service drives the pending_payment -> confirmed/failed edge from gateway
// webhooks. The ledger insert is the sole serialization point: once it
// succeeds this caller is the single winner for the event, and the guarded
// booking transition is the second, independent safety net.
type Service struct {
	UoWFactory uow.UoWFactory
	Gateways   map[domainpayments.Provider]policies.PaymentGateway
	Notifier   policies.Notifier
	Outbox     outbox.Outbox
	Cache      policies.CalendarCache
	Logger     *slog.Logger
}

func (s *Service) Process(ctx context.Context, d Delivery) (Outcome, error) {
	ctx, unit, owned, err := uow.Acquire(ctx, s.UoWFactory, uow.TxOptions{})
	if err != nil {
		return Outcome{}, err
	}
	committed := false
	if owned {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	ledger := unit.WebhookLedger()
	event := &domainpayments.WebhookEvent{
		ID:          uuid.NewString(),
		Provider:    d.Provider,
		EventID:     d.EventID,
		EventType:   d.EventType,
		Reference:   d.Reference,
		PayloadHash: d.PayloadHash,
		Status:      domainpayments.WebhookReceived,
		ReceivedAt:  d.ReceivedAt.UTC(),
	}
	if err := ledger.Insert(ctx, event); err != nil {
		if errors.Is(err, domainpayments.ErrDuplicateEvent) {
			s.log().Info("webhook duplicate ignored", "provider", d.Provider, "event_type", d.EventType, "payload_hash", d.PayloadHash)
			return Outcome{Duplicate: true}, s.commit(ctx, unit, owned, &committed)
		}
		return Outcome{}, err
	}

	now := time.Now().UTC()
	if !successEvents[d.EventType] && !failureEvents[d.EventType] {
		if err := ledger.MarkSkipped(ctx, event.ID, "unhandled event type", now); err != nil {
			return Outcome{}, err
		}
		return Outcome{Ignored: true, Reason: "unhandled_event_type"}, s.commit(ctx, unit, owned, &committed)
	}

	outcome, err := s.settle(ctx, unit, d, now)
	if err != nil {
		// Record the failure on the ledger and acknowledge; the gateway's
		// redelivery schedule is not a retry mechanism for our bugs.
		s.log().Error("webhook processing failed", "provider", d.Provider, "reference", d.Reference, "error", err)
		if markErr := ledger.MarkFailed(ctx, event.ID, err.Error(), now); markErr != nil {
			return Outcome{}, markErr
		}
		if commitErr := s.commit(ctx, unit, owned, &committed); commitErr != nil {
			return Outcome{}, commitErr
		}
		return Outcome{Failed: true, Reason: err.Error()}, nil
	}

	if err := ledger.MarkProcessed(ctx, event.ID, now); err != nil {
		return Outcome{}, err
	}
	if err := s.commit(ctx, unit, owned, &committed); err != nil {
		return Outcome{}, err
	}

	// Side effects run after commit and only for the winning transition, so
	// a redelivered event never re-sends guest or host mail.
	if outcome.Transitioned {
		s.dispatchNotifications(ctx, d)
		if s.Cache != nil {
			if listingID := outcome.listingID; listingID != "" {
				_ = s.Cache.Invalidate(ctx, listingID)
			}
		}
	}
	return outcome.Outcome, nil
}

type settleResult struct {
	Outcome
	listingID string
}

func (s *Service) settle(ctx context.Context, unit uow.UnitOfWork, d Delivery, now time.Time) (settleResult, error) {
	payment, err := unit.Payments().ByReference(ctx, d.Provider, d.Reference)
	if err != nil {
		return settleResult{}, fmt.Errorf("reconcile: unknown payment reference %q: %w", d.Reference, err)
	}

	if failureEvents[d.EventType] {
		if err := payment.MarkFailed("gateway reported failure: "+d.EventType, now); err != nil && !errors.Is(err, domainpayments.ErrInvalidState) {
			return settleResult{}, err
		}
		if err := unit.Payments().Save(ctx, payment); err != nil {
			return settleResult{}, err
		}
		return settleResult{Outcome: Outcome{Reason: "payment_failed"}}, nil
	}

	// Never trust the webhook body's success flag: re-verify against the
	// gateway's transaction API before touching booking state.
	gateway, ok := s.Gateways[d.Provider]
	if !ok {
		return settleResult{}, fmt.Errorf("reconcile: no gateway configured for provider %q", d.Provider)
	}
	verification, err := gateway.Verify(ctx, d.Reference)
	if err != nil {
		return settleResult{}, fmt.Errorf("reconcile: gateway verification failed: %w", err)
	}
	if !verification.Paid {
		if err := payment.MarkFailed("verification reported status "+verification.Status, now); err == nil {
			if saveErr := unit.Payments().Save(ctx, payment); saveErr != nil {
				return settleResult{}, saveErr
			}
		}
		return settleResult{Outcome: Outcome{Failed: true, Reason: "not_paid"}}, nil
	}
	if verification.Amount != payment.Amount || (verification.Currency != "" && verification.Currency != payment.Currency) {
		if err := payment.MarkFailed(fmt.Sprintf("amount mismatch: expected %d %s, verified %d %s", payment.Amount, payment.Currency, verification.Amount, verification.Currency), now); err == nil {
			if saveErr := unit.Payments().Save(ctx, payment); saveErr != nil {
				return settleResult{}, saveErr
			}
		}
		return settleResult{Outcome: Outcome{Failed: true, Reason: "amount_mismatch"}}, nil
	}

	// Guarded transition: only one caller observes pending_payment.
	transitioned, err := unit.Bookings().TransitionState(ctx, payment.BookingID, domainbooking.StatePendingPayment, domainbooking.StateConfirmed, now)
	if err != nil {
		return settleResult{}, err
	}

	if err := payment.MarkSucceeded(verification.PaidAt, verification.Authorization, verification.CustomerEmail, now); err != nil && !errors.Is(err, domainpayments.ErrInvalidState) {
		return settleResult{}, err
	}
	if err := unit.Payments().Save(ctx, payment); err != nil {
		return settleResult{}, err
	}

	res := settleResult{Outcome: Outcome{Transitioned: transitioned}}
	if !transitioned {
		// Someone else already handled this booking; not an error.
		res.Reason = "already_confirmed"
		return res, nil
	}

	b, err := unit.Bookings().ByID(ctx, payment.BookingID)
	if err == nil {
		res.listingID = string(b.ListingID)
		b.ClearEvents()
		b.Record(domainbooking.BookingConfirmed{
			BookingID:  b.ID,
			ListingID:  b.ListingID,
			CheckIn:    b.CheckIn,
			CheckOut:   b.CheckOut,
			PaymentRef: payment.Reference,
			At:         now,
		})
		if err := outbox.Drain(ctx, s.Outbox, &b.Recorder); err != nil {
			return settleResult{}, err
		}
	}
	return res, nil
}

func (s *Service) dispatchNotifications(ctx context.Context, d Delivery) {
	if s.Notifier == nil {
		return
	}
	ctx2, unit, owned, err := uow.Acquire(ctx, s.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return
	}
	if owned {
		defer unit.Rollback(ctx2)
	}
	payment, err := unit.Payments().ByReference(ctx2, d.Provider, d.Reference)
	if err != nil {
		return
	}
	b, err := unit.Bookings().ByID(ctx2, payment.BookingID)
	if err != nil {
		return
	}
	data := map[string]any{
		"booking_id": string(b.ID),
		"check_in":   string(b.CheckIn),
		"check_out":  string(b.CheckOut),
	}
	if b.GuestEmail != "" {
		if err := s.Notifier.Send(ctx2, b.GuestEmail, "booking_confirmed_guest", data); err != nil {
			s.log().Warn("guest notification failed", "booking_id", b.ID, "error", err)
		}
	}
	listing, err := unit.Listings().ByID(ctx2, b.ListingID)
	if err == nil && listing.HostEmail != "" {
		if err := s.Notifier.Send(ctx2, listing.HostEmail, "booking_confirmed_host", data); err != nil {
			s.log().Warn("host notification failed", "booking_id", b.ID, "error", err)
		}
	}
}

func (s *Service) commit(ctx context.Context, unit uow.UnitOfWork, owned bool, committed *bool) error {
	if !owned {
		return nil
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	*committed = true
	return nil
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
