package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortstay/internal/app/outbox"
	"shortstay/internal/app/uow"
)

var ErrExpirerNotConfigured = errors.New("schedule: expirer missing dependencies")

// Expirer times out stay requests the host never answered or the guest never
// paid. It is the only writer of the PENDING/PENDING_PAYMENT -> EXPIRED edge.
type Expirer struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Interval   time.Duration
	Logger     *slog.Logger
}

func (e *Expirer) Run(ctx context.Context) error {
	if e.UoWFactory == nil {
		return ErrExpirerNotConfigured
	}
	ticker := time.NewTicker(e.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.processOnce(ctx); err != nil {
				e.log().Error("booking expiry sweep failed", "error", err)
			}
		}
	}
}

func (e *Expirer) processOnce(ctx context.Context) error {
	ctx, unit, owned, err := uow.Acquire(ctx, e.UoWFactory, uow.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	if owned {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	now := time.Now().UTC()
	expired, err := unit.Bookings().ExpirePendingBefore(ctx, now)
	if err != nil {
		return err
	}
	for _, b := range expired {
		e.log().Info("booking expired", "booking_id", b.ID, "listing_id", b.ListingID)
		if err := outbox.Drain(ctx, e.Outbox, &b.Recorder); err != nil {
			return err
		}
	}
	if owned {
		if err := unit.Commit(ctx); err != nil {
			return err
		}
		committed = true
	}
	return nil
}

func (e *Expirer) interval() time.Duration {
	if e.Interval <= 0 {
		return time.Minute
	}
	return e.Interval
}

func (e *Expirer) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
