// Package flights holds the canonical flight-board schema that every
// per-airport fetcher normalizes into, plus the filter pipeline and the
// page-collection orchestration shared by paginated sources.
package flights

import (
	"strings"
	"time"
)

// TimeMark distinguishes an observed time from a projected one. Sources mark
// these inconsistently (some mark estimated, some mark actual, some neither),
// so the distinction is carried explicitly instead of guessed from a suffix.
type TimeMark int

const (
	// MarkActual means the time was reported as having happened.
	MarkActual TimeMark = iota
	// MarkEstimated means the time is the source's current projection.
	MarkEstimated
)

// TimedValue is an "HH:MM" clock string tagged with whether it is an actual
// or an estimated time.
type TimedValue struct {
	Clock string
	Mark  TimeMark
}

// String renders the clock with the board-style suffix used by the Chinese
// airport displays: (实) for actual, (预) for estimated.
func (v TimedValue) String() string {
	switch v.Mark {
	case MarkActual:
		return v.Clock + "(实)"
	case MarkEstimated:
		return v.Clock + "(预)"
	}
	return v.Clock
}

// Actual builds an actual-time value.
func Actual(clock string) *TimedValue {
	return &TimedValue{Clock: clock, Mark: MarkActual}
}

// Estimated builds an estimated-time value.
func Estimated(clock string) *TimedValue {
	return &TimedValue{Clock: clock, Mark: MarkEstimated}
}

// QueryFlightForm is the normalized user query. It is constructed once and
// consumed read-only by fetchers and filters.
type QueryFlightForm struct {
	FlightNo       string    // case-insensitive substring match
	Airlines       string    // display-name substring match
	Airport        string    // other-end airport name or IATA code
	AtTime         time.Time // reference instant; zero means "now" at the airport
	AircraftModels []string  // uppercase model codes, empty = no filter
	AirlinesCodes  []string  // 2-letter IATA carrier codes
	Alliance       string    // alliance name or synonym, see alliance.go
}

// FlightRecord is the canonical representation of one flight-board row.
// Exactly one of DepTime/ArrTime is populated depending on whether the row
// was parsed from a departure or an arrival board.
type FlightRecord struct {
	FlightNo       string
	SharedCodes    []string
	Airlines       string
	AirlinesCode   string
	DepAirport     string
	ArrAirport     string
	DepAirportCode string
	ArrAirportCode string
	ViaAirports    []string
	DepTime        string // scheduled local "HH:MM"
	ArrTime        string // scheduled local "HH:MM"
	ActDepTime     *TimedValue
	ActArrTime     *TimedValue
	Date           time.Time // calendar date, midnight in the airport's zone
	Terminal       string
	Gate           string
	Carousel       string
	Stand          string
	Status         string
	AircraftModel  string
}

// CarrierCode returns the 2-letter carrier code, falling back to the first
// two characters of the flight number when the source did not report one.
func (r FlightRecord) CarrierCode() string {
	if r.AirlinesCode != "" {
		return strings.ToUpper(r.AirlinesCode)
	}
	if len(r.FlightNo) >= 2 {
		return strings.ToUpper(r.FlightNo[:2])
	}
	return ""
}

// ScheduledClock returns the scheduled "HH:MM" string for the given direction.
func (r FlightRecord) ScheduledClock(departure bool) string {
	if departure {
		return r.DepTime
	}
	return r.ArrTime
}

// ActualTime returns the actual/estimated time for the given direction, or nil.
func (r FlightRecord) ActualTime(departure bool) *TimedValue {
	if departure {
		return r.ActDepTime
	}
	return r.ActArrTime
}

// ScheduledAt combines Date with the direction's scheduled clock into a full
// timestamp in the airport's zone. A missing or malformed clock yields
// ok=false rather than an error.
func (r FlightRecord) ScheduledAt(departure bool) (time.Time, bool) {
	clock := r.ScheduledClock(departure)
	if clock == "" || r.Date.IsZero() {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(
		r.Date.Year(), r.Date.Month(), r.Date.Day(),
		t.Hour(), t.Minute(), 0, 0,
		r.Date.Location(),
	), true
}

// IsAfter reports whether the scheduled time is at or after t. Records with
// no derivable time never match.
func (r FlightRecord) IsAfter(t time.Time, departure bool) bool {
	at, ok := r.ScheduledAt(departure)
	if !ok {
		return false
	}
	return !at.Before(t)
}
