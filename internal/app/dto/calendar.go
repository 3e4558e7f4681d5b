package dto

import (
	"sort"

	"shortstay/internal/domain/availability"
	"shortstay/internal/domain/shared/datekey"
)

// Calendar is the date-picker payload: every blocked day in the window.
type Calendar struct {
	ListingID     string   `json:"listing_id"`
	From          string   `json:"from,omitempty"`
	To            string   `json:"to,omitempty"`
	DisabledDates []string `json:"disabled_dates"`
}

func MapCalendar(listingID, from, to string, disabled map[datekey.DateKey]struct{}) Calendar {
	dates := make([]string, 0, len(disabled))
	for d := range disabled {
		dates = append(dates, string(d))
	}
	sort.Strings(dates)
	return Calendar{ListingID: listingID, From: from, To: to, DisabledDates: dates}
}

// StayVerdict combines range validation with the conflict detail so the UI
// can say which nights are the problem.
type StayVerdict struct {
	Valid             bool     `json:"valid"`
	Reason            string   `json:"reason,omitempty"`
	Nights            int      `json:"nights"`
	ConflictingNights []string `json:"conflicting_nights,omitempty"`
}

func MapStayVerdict(v availability.SelectionVerdict, report availability.ConflictReport) StayVerdict {
	out := StayVerdict{Valid: v.Valid, Reason: string(v.Reason), Nights: v.Nights}
	for _, n := range report.Nights {
		out.ConflictingNights = append(out.ConflictingNights, string(n))
	}
	return out
}

// CheckoutSuggestion carries the nearest bookable checkout after a chosen
// check-in, when one exists inside the search horizon.
type CheckoutSuggestion struct {
	CheckIn  string `json:"check_in"`
	Checkout string `json:"checkout,omitempty"`
	Found    bool   `json:"found"`
}
