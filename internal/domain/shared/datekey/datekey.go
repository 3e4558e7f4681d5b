package datekey

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDateKey = errors.New("datekey: not a valid YYYY-MM-DD calendar date")

// DateKey is a timezone-free calendar date in canonical YYYY-MM-DD form.
// All arithmetic is done on whole UTC days so the same key always maps to
// the same epoch-day integer regardless of the server timezone.
type DateKey string

const layout = "2006-01-02"

// epochDay counts whole days since 1970-01-01 UTC.
const secondsPerDay = 24 * 60 * 60

// Parse validates s strictly: it must match the layout and denote a real
// calendar date. Non-canonical inputs such as "2024-02-30" or "2024-2-3"
// are rejected by round-tripping through UTC date construction.
func Parse(s string) (DateKey, error) {
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, s)
	}
	if t.Format(layout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, s)
	}
	return DateKey(s), nil
}

// IsValid reports whether s is a well-formed canonical date key.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// EpochDay converts a key to its UTC day number since 1970-01-01.
func EpochDay(d DateKey) (int, error) {
	t, err := time.ParseInLocation(layout, string(d), time.UTC)
	if err != nil || t.Format(layout) != string(d) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDateKey, d)
	}
	return int(t.Unix() / secondsPerDay), nil
}

// FromEpochDay is the inverse of EpochDay.
func FromEpochDay(day int) DateKey {
	t := time.Unix(int64(day)*secondsPerDay, 0).UTC()
	return DateKey(t.Format(layout))
}

// FromTime truncates t to its UTC calendar date.
func FromTime(t time.Time) DateKey {
	return DateKey(t.UTC().Format(layout))
}

// Time returns the midnight-UTC instant for the key.
func (d DateKey) Time() (time.Time, error) {
	t, err := time.ParseInLocation(layout, string(d), time.UTC)
	if err != nil || t.Format(layout) != string(d) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, d)
	}
	return t, nil
}

// AddDays shifts the key by n calendar days (n may be negative).
func AddDays(d DateKey, n int) (DateKey, error) {
	day, err := EpochDay(d)
	if err != nil {
		return "", err
	}
	return FromEpochDay(day + n), nil
}

// Compare orders two keys: -1 when a < b, 0 when equal, 1 when a > b.
// Canonical keys compare correctly as strings.
func Compare(a, b DateKey) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// NightsBetween returns the whole-day distance from checkIn to checkOut.
// Negative when checkOut precedes checkIn.
func NightsBetween(checkIn, checkOut DateKey) (int, error) {
	a, err := EpochDay(checkIn)
	if err != nil {
		return 0, err
	}
	b, err := EpochDay(checkOut)
	if err != nil {
		return 0, err
	}
	return b - a, nil
}
