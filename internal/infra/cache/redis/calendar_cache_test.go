package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "shortstay/internal/infra/cache/redis"
	"shortstay/internal/domain/shared/datekey"
)

func TestGetMissesWhenWindowKeyAbsent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewCalendarCache(db, time.Minute)

	mock.ExpectGet("calendar:ver:lst-1").RedisNil()
	mock.ExpectGet("calendar:lst-1:v0:2025-06-01:2025-06-30").RedisNil()

	dates, hit, err := c.Get(context.Background(), "lst-1", "2025-06-01", "2025-06-30")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, dates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsCachedWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewCalendarCache(db, time.Minute)

	mock.ExpectGet("calendar:ver:lst-1").SetVal("3")
	mock.ExpectGet("calendar:lst-1:v3:2025-06-01:2025-06-30").
		SetVal(`["2025-06-10","2025-06-11"]`)

	dates, hit, err := c.Get(context.Background(), "lst-1", "2025-06-01", "2025-06-30")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []datekey.DateKey{"2025-06-10", "2025-06-11"}, dates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTreatsCorruptEntryAsMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewCalendarCache(db, time.Minute)

	mock.ExpectGet("calendar:ver:lst-1").RedisNil()
	mock.ExpectGet("calendar:lst-1:v0:2025-06-01:2025-06-30").SetVal("{not json")

	_, hit, err := c.Get(context.Background(), "lst-1", "2025-06-01", "2025-06-30")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSetWritesVersionedWindowWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewCalendarCache(db, 2*time.Minute)

	mock.ExpectGet("calendar:ver:lst-1").SetVal("7")
	mock.ExpectSet("calendar:lst-1:v7:2025-06-01:2025-06-30",
		[]byte(`["2025-06-10"]`), 2*time.Minute).SetVal("OK")

	err := c.Set(context.Background(), "lst-1", "2025-06-01", "2025-06-30",
		[]datekey.DateKey{"2025-06-10"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateBumpsVersion(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := cache.NewCalendarCache(db, time.Minute)

	mock.ExpectIncr("calendar:ver:lst-1").SetVal(8)
	require.NoError(t, c.Invalidate(context.Background(), "lst-1"))

	// Reads after the bump land on the new version and miss until refilled.
	mock.ExpectGet("calendar:ver:lst-1").SetVal("8")
	mock.ExpectGet("calendar:lst-1:v8:2025-06-01:2025-06-30").RedisNil()
	_, hit, err := c.Get(context.Background(), "lst-1", "2025-06-01", "2025-06-30")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}
