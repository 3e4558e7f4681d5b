package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"shortstay/internal/app/policies"
	"shortstay/internal/domain/shared/datekey"
)

// CalendarCache stores projected disabled-date windows in Redis. Invalidation
// bumps a per-listing version key instead of scanning for window keys; stale
// entries age out through the TTL.
type CalendarCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewCalendarCache(client goredis.UniversalClient, ttl time.Duration) *CalendarCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CalendarCache{client: client, ttl: ttl}
}

func (c *CalendarCache) Get(ctx context.Context, listingID, from, to string) ([]datekey.DateKey, bool, error) {
	key, err := c.windowKey(ctx, listingID, from, to)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var dates []datekey.DateKey
	if err := json.Unmarshal(raw, &dates); err != nil {
		// Treat a corrupt entry as a miss and let it expire.
		return nil, false, nil
	}
	return dates, true, nil
}

func (c *CalendarCache) Set(ctx context.Context, listingID, from, to string, dates []datekey.DateKey) error {
	key, err := c.windowKey(ctx, listingID, from, to)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(dates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *CalendarCache) Invalidate(ctx context.Context, listingID string) error {
	return c.client.Incr(ctx, versionKey(listingID)).Err()
}

func (c *CalendarCache) windowKey(ctx context.Context, listingID, from, to string) (string, error) {
	version, err := c.client.Get(ctx, versionKey(listingID)).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", err
	}
	return fmt.Sprintf("calendar:%s:v%d:%s:%s", listingID, version, from, to), nil
}

func versionKey(listingID string) string {
	return "calendar:ver:" + listingID
}

var _ policies.CalendarCache = (*CalendarCache)(nil)
