package datekey_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortstay/internal/domain/shared/datekey"
)

func TestParseAcceptsCanonicalDates(t *testing.T) {
	for _, s := range []string{"1970-01-01", "2024-02-29", "2025-06-10", "2099-12-31"} {
		d, err := datekey.Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, datekey.DateKey(s), d)
	}
}

func TestParseRejectsNonCanonicalInput(t *testing.T) {
	for _, s := range []string{
		"",
		"2024-02-30",
		"2023-02-29",
		"2024-13-01",
		"2024-00-10",
		"2024-2-3",
		"24-02-03",
		"2024/02/03",
		"2024-02-03T00:00:00Z",
	} {
		_, err := datekey.Parse(s)
		assert.ErrorIs(t, err, datekey.ErrInvalidDateKey, "input %q", s)
		assert.False(t, datekey.IsValid(s), "input %q", s)
	}
}

func TestEpochDayRoundTrip(t *testing.T) {
	day, err := datekey.EpochDay("1970-01-01")
	require.NoError(t, err)
	assert.Equal(t, 0, day)

	// Every key survives the round trip regardless of month boundaries and
	// leap days.
	start, err := datekey.EpochDay("2024-02-27")
	require.NoError(t, err)
	for offset := 0; offset < 400; offset++ {
		key := datekey.FromEpochDay(start + offset)
		back, err := datekey.EpochDay(key)
		require.NoError(t, err)
		assert.Equal(t, start+offset, back, "key %s", key)
	}
}

func TestAddDaysCrossesMonthAndLeapBoundaries(t *testing.T) {
	got, err := datekey.AddDays("2024-02-28", 1)
	require.NoError(t, err)
	assert.Equal(t, datekey.DateKey("2024-02-29"), got)

	got, err = datekey.AddDays("2024-02-29", 1)
	require.NoError(t, err)
	assert.Equal(t, datekey.DateKey("2024-03-01"), got)

	got, err = datekey.AddDays("2025-01-01", -1)
	require.NoError(t, err)
	assert.Equal(t, datekey.DateKey("2024-12-31"), got)
}

func TestCompareMatchesChronology(t *testing.T) {
	assert.Equal(t, -1, datekey.Compare("2025-06-09", "2025-06-10"))
	assert.Equal(t, 0, datekey.Compare("2025-06-10", "2025-06-10"))
	assert.Equal(t, 1, datekey.Compare("2025-07-01", "2025-06-30"))
}

func TestNightsBetween(t *testing.T) {
	nights, err := datekey.NightsBetween("2025-06-10", "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, 5, nights)

	nights, err = datekey.NightsBetween("2025-06-15", "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, -5, nights)

	_, err = datekey.NightsBetween("2025-06-10", "not-a-date")
	assert.Error(t, err)
}

func TestFromTimeUsesUTCDate(t *testing.T) {
	lagos := time.FixedZone("WAT", 1*60*60)
	// 00:30 WAT on June 11 is still June 10 in UTC.
	local := time.Date(2025, 6, 11, 0, 30, 0, 0, lagos)
	assert.Equal(t, datekey.DateKey("2025-06-10"), datekey.FromTime(local))
}
