package policies

import (
	"context"

	"shortstay/internal/domain/shared/datekey"
)

// CalendarCache caches the projected disabled-date set per listing. A miss
// is never an error; callers fall through to the repositories.
type CalendarCache interface {
	Get(ctx context.Context, listingID, from, to string) ([]datekey.DateKey, bool, error)
	Set(ctx context.Context, listingID, from, to string, dates []datekey.DateKey) error
	Invalidate(ctx context.Context, listingID string) error
}
