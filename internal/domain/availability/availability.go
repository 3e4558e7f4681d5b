package availability

import (
	"sort"

	"shortstay/internal/domain/shared/datekey"
)

// RangeSource tags where an unavailable range came from. Only booking-sourced
// ranges receive the turnover prep buffer; host blocks already cover exactly
// the interval the host intended.
type RangeSource string

const (
	SourceBooking   RangeSource = "booking"
	SourceHostBlock RangeSource = "host_block"
)

// UnavailableRange is a half-open interval [Start, End) during which a
// listing cannot be stayed in. Derived at query time from booking rows and
// host calendar blocks; never persisted on its own.
type UnavailableRange struct {
	Start     datekey.DateKey `json:"start"`
	End       datekey.DateKey `json:"end"`
	Source    RangeSource     `json:"source,omitempty"`
	BookingID string          `json:"booking_id,omitempty"`
}

func (r UnavailableRange) valid() bool {
	return datekey.IsValid(string(r.Start)) &&
		datekey.IsValid(string(r.End)) &&
		datekey.Compare(r.Start, r.End) < 0
}

// fromBooking reports whether the range originates from a booking and is
// therefore subject to prep-buffer expansion.
func (r UnavailableRange) fromBooking() bool {
	return r.Source == SourceBooking || r.BookingID != ""
}

// ApplyPrepBuffer extends the End of every booking-sourced range by prepDays
// calendar days (cleaning/turnover buffer). Other ranges pass through
// unchanged. prepDays <= 0 returns a shallow copy.
func ApplyPrepBuffer(ranges []UnavailableRange, prepDays int) []UnavailableRange {
	out := make([]UnavailableRange, len(ranges))
	copy(out, ranges)
	if prepDays <= 0 {
		return out
	}
	for i, r := range out {
		if !r.fromBooking() || !r.valid() {
			continue
		}
		extended, err := datekey.AddDays(r.End, prepDays)
		if err != nil {
			continue
		}
		out[i].End = extended
	}
	return out
}

// ExpandDisabledDates projects ranges into the explicit set of blocked
// calendar days, optionally clamped to [from, to]. Degenerate or malformed
// ranges are skipped: bad upstream rows must not break calendar rendering.
func ExpandDisabledDates(ranges []UnavailableRange, from, to datekey.DateKey) map[datekey.DateKey]struct{} {
	disabled := make(map[datekey.DateKey]struct{})
	for _, r := range ranges {
		if !r.valid() {
			continue
		}
		start, stop := r.Start, r.End
		if from != "" && datekey.Compare(start, from) < 0 {
			start = from
		}
		if to != "" {
			// The clamp window is inclusive of "to" as a day, so the
			// half-open stop is the day after it.
			limit, err := datekey.AddDays(to, 1)
			if err == nil && datekey.Compare(stop, limit) > 0 {
				stop = limit
			}
		}
		startDay, err := datekey.EpochDay(start)
		if err != nil {
			continue
		}
		stopDay, err := datekey.EpochDay(stop)
		if err != nil {
			continue
		}
		for day := startDay; day < stopDay; day++ {
			disabled[datekey.FromEpochDay(day)] = struct{}{}
		}
	}
	return disabled
}

// ConflictQuery asks whether a candidate stay collides with blocked ranges.
type ConflictQuery struct {
	CheckIn  datekey.DateKey
	CheckOut datekey.DateKey
	Ranges   []UnavailableRange
	PrepDays int
}

// ConflictReport lists the individual conflicting nights, not just a flag,
// so callers can render which days are unavailable.
type ConflictReport struct {
	HasConflict bool               `json:"has_conflict"`
	Nights      []datekey.DateKey  `json:"conflicting_nights,omitempty"`
	Ranges      []UnavailableRange `json:"conflicting_ranges,omitempty"`
}

// ResolveConflicts checks a valid candidate range against the blocked set.
// A malformed query range yields "no conflict": input well-formedness is the
// job of ValidateRangeSelection, which callers always run alongside this.
func ResolveConflicts(q ConflictQuery) ConflictReport {
	if !datekey.IsValid(string(q.CheckIn)) || !datekey.IsValid(string(q.CheckOut)) {
		return ConflictReport{}
	}
	if datekey.Compare(q.CheckIn, q.CheckOut) >= 0 {
		return ConflictReport{}
	}

	expanded := ApplyPrepBuffer(q.Ranges, q.PrepDays)

	// Half-open overlap test: [a,b) and [c,d) overlap iff a < d && c < b.
	var overlapping []UnavailableRange
	for _, r := range expanded {
		if !r.valid() {
			continue
		}
		if datekey.Compare(r.Start, q.CheckOut) < 0 && datekey.Compare(q.CheckIn, r.End) < 0 {
			overlapping = append(overlapping, r)
		}
	}
	if len(overlapping) == 0 {
		return ConflictReport{}
	}

	checkInDay, _ := datekey.EpochDay(q.CheckIn)
	checkOutDay, _ := datekey.EpochDay(q.CheckOut)
	var nights []datekey.DateKey
	for day := checkInDay; day < checkOutDay; day++ {
		night := datekey.FromEpochDay(day)
		for _, r := range overlapping {
			if datekey.Compare(r.Start, night) <= 0 && datekey.Compare(night, r.End) < 0 {
				nights = append(nights, night)
				break
			}
		}
	}
	if len(nights) == 0 {
		return ConflictReport{}
	}
	sort.Slice(nights, func(i, j int) bool { return nights[i] < nights[j] })
	return ConflictReport{HasConflict: true, Nights: nights, Ranges: overlapping}
}

// SelectionReason identifies why a candidate range was rejected. Checks run
// in a fixed order and the first failure wins.
type SelectionReason string

const (
	ReasonMissingDates     SelectionReason = "missing_dates"
	ReasonInvalidDate      SelectionReason = "invalid_date"
	ReasonCheckoutBeforeIn SelectionReason = "checkout_before_checkin"
	ReasonMinNights        SelectionReason = "min_nights"
	ReasonMaxNights        SelectionReason = "max_nights"
	ReasonUnavailableNight SelectionReason = "includes_unavailable_night"
)

// SelectionQuery is a candidate stay to validate against policy and the
// disabled-night set.
type SelectionQuery struct {
	CheckIn   string
	CheckOut  string
	Disabled  map[datekey.DateKey]struct{}
	MinNights int
	MaxNights int
}

// SelectionVerdict is the structured outcome; Reason is empty when Valid.
type SelectionVerdict struct {
	Valid  bool            `json:"valid"`
	Reason SelectionReason `json:"reason,omitempty"`
	Nights int             `json:"nights"`
}

// ValidateRangeSelection is the single authority run before a booking may be
// created. Error precedence is deterministic: missing_dates, invalid_date,
// checkout_before_checkin, min_nights, max_nights, includes_unavailable_night.
func ValidateRangeSelection(q SelectionQuery) SelectionVerdict {
	if q.CheckIn == "" || q.CheckOut == "" {
		return SelectionVerdict{Reason: ReasonMissingDates}
	}
	checkIn, errIn := datekey.Parse(q.CheckIn)
	checkOut, errOut := datekey.Parse(q.CheckOut)
	if errIn != nil || errOut != nil {
		return SelectionVerdict{Reason: ReasonInvalidDate}
	}
	nights, err := datekey.NightsBetween(checkIn, checkOut)
	if err != nil || nights < 1 {
		return SelectionVerdict{Reason: ReasonCheckoutBeforeIn}
	}
	minNights := q.MinNights
	if minNights < 1 {
		minNights = 1
	}
	if nights < minNights {
		return SelectionVerdict{Reason: ReasonMinNights, Nights: nights}
	}
	if q.MaxNights > 0 && nights > q.MaxNights {
		return SelectionVerdict{Reason: ReasonMaxNights, Nights: nights}
	}
	checkInDay, _ := datekey.EpochDay(checkIn)
	for day := checkInDay; day < checkInDay+nights; day++ {
		if _, blocked := q.Disabled[datekey.FromEpochDay(day)]; blocked {
			return SelectionVerdict{Reason: ReasonUnavailableNight, Nights: nights}
		}
	}
	return SelectionVerdict{Valid: true, Nights: nights}
}

// NextEndDateQuery searches forward for the first bookable checkout after a
// chosen check-in.
type NextEndDateQuery struct {
	CheckIn         datekey.DateKey
	Disabled        map[datekey.DateKey]struct{}
	MinNights       int
	MaxNights       int
	SearchLimitDays int
}

const defaultSearchLimitDays = 365

// NextValidEndDate returns the earliest checkout for which the selection
// validates, or "" when none exists within the search horizon. MaxNights
// bounds the search early.
func NextValidEndDate(q NextEndDateQuery) datekey.DateKey {
	if !datekey.IsValid(string(q.CheckIn)) {
		return ""
	}
	minNights := q.MinNights
	if minNights < 1 {
		minNights = 1
	}
	limit := q.SearchLimitDays
	if limit <= 0 {
		limit = defaultSearchLimitDays
	}
	if q.MaxNights > 0 && q.MaxNights < limit {
		limit = q.MaxNights
	}
	checkInDay, _ := datekey.EpochDay(q.CheckIn)
	for nights := minNights; nights <= limit; nights++ {
		candidate := datekey.FromEpochDay(checkInDay + nights)
		verdict := ValidateRangeSelection(SelectionQuery{
			CheckIn:   string(q.CheckIn),
			CheckOut:  string(candidate),
			Disabled:  q.Disabled,
			MinNights: q.MinNights,
			MaxNights: q.MaxNights,
		})
		if verdict.Valid {
			return candidate
		}
	}
	return ""
}
