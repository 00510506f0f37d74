package flightlog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tailspot/internal/airports"
)

// DataQualityError marks a flight-log row that cannot be normalized. Imports
// count these and continue; they never abort a batch.
type DataQualityError struct {
	Row    int
	Field  string
	Reason string
}

func (e *DataQualityError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// IsDataQuality reports whether err is a row-level data quality rejection.
func IsDataQuality(err error) bool {
	var dq *DataQualityError
	return errors.As(err, &dq)
}

// Resolve normalizes a raw flight-log row: airport codes are resolved against
// the bundled dataset, clock times are interpreted in airport-local zones,
// and the UTC departure/arrival instants and destination-local arrival date
// are computed.
//
// Overnight arrivals follow the red-eye rule: an arrival clock time
// numerically earlier than the departure clock time rolls the arrival date
// forward one day. After conversion the UTC ordering is re-checked and may
// trigger the roll instead, but never more than one day in total; a row whose
// UTC arrival still precedes its UTC departure is rejected.
//
// Unknown airports degrade precision instead of rejecting: the affected clock
// times are interpreted as UTC and the flight is flagged.
func Resolve(rec RawRecord) (Flight, error) {
	flight := Flight{
		RowIndex:        rec.RowIndex,
		FlightNumber:    strings.TrimSpace(rec.FlightNumber),
		Airline:         strings.TrimSpace(rec.Airline),
		Aircraft:        strings.TrimSpace(rec.Aircraft),
		Registration:    CanonicalRegistration(rec.Registration),
		OriginName:      strings.TrimSpace(rec.OriginName),
		OriginCity:      strings.TrimSpace(rec.OriginCity),
		DestinationName: strings.TrimSpace(rec.DestinationName),
		DestinationCity: strings.TrimSpace(rec.DestinationCity),
		SeatNumber:      strings.TrimSpace(rec.SeatNumber),
		SeatClass:       strings.TrimSpace(rec.SeatClass),
		Note:            strings.TrimSpace(rec.Note),
	}

	date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec.FlightDate))
	if err != nil {
		return Flight{}, &DataQualityError{Row: rec.RowIndex, Field: "date", Reason: fmt.Sprintf("unparseable %q", rec.FlightDate)}
	}
	flight.FlightDate = date

	depClock, err := parseClock(rec.DepartureTime)
	if err != nil {
		return Flight{}, &DataQualityError{Row: rec.RowIndex, Field: "departure time", Reason: err.Error()}
	}
	arrClock, err := parseClock(rec.ArrivalTime)
	if err != nil {
		return Flight{}, &DataQualityError{Row: rec.RowIndex, Field: "arrival time", Reason: err.Error()}
	}
	flight.DepartureTime = depClock.String()
	flight.ArrivalTime = arrClock.String()

	originLoc, originDegraded := resolveEndpoint(rec.OriginIATA, rec.OriginICAO, &flight.OriginIATA, &flight.OriginICAO)
	destLoc, destDegraded := resolveEndpoint(rec.DestinationIATA, rec.DestinationICAO, &flight.DestinationIATA, &flight.DestinationICAO)
	flight.TimezoneDegraded = originDegraded || destDegraded

	arrivalDate := date
	incremented := false
	if arrClock.before(depClock) {
		arrivalDate = arrivalDate.AddDate(0, 0, 1)
		incremented = true
	}

	departureUTC := atClock(date, depClock, originLoc).UTC()
	arrivalUTC := atClock(arrivalDate, arrClock, destLoc).UTC()

	if arrivalUTC.Before(departureUTC) {
		if incremented {
			return Flight{}, &DataQualityError{Row: rec.RowIndex, Reason: "arrival precedes departure after overnight adjustment"}
		}
		arrivalDate = arrivalDate.AddDate(0, 0, 1)
		arrivalUTC = atClock(arrivalDate, arrClock, destLoc).UTC()
		if arrivalUTC.Before(departureUTC) {
			return Flight{}, &DataQualityError{Row: rec.RowIndex, Reason: "arrival precedes departure after overnight adjustment"}
		}
	}

	flight.DepartureUTC = departureUTC
	flight.ArrivalUTC = arrivalUTC

	localArrival := arrivalUTC.In(destLoc)
	flight.ArrivalDate = time.Date(localArrival.Year(), localArrival.Month(), localArrival.Day(), 0, 0, 0, 0, time.UTC)

	return flight, nil
}

// resolveEndpoint fills the normalized code fields and returns the timezone
// to interpret clock times in. Unresolvable endpoints keep their raw codes
// and fall back to UTC with the degraded flag set.
func resolveEndpoint(iata, icao string, outIATA, outICAO *string) (*time.Location, bool) {
	*outIATA = airports.NormalizeCode(iata)
	*outICAO = airports.NormalizeCode(icao)

	var airport airports.Airport
	found := false
	if *outIATA != "" {
		airport, found = airports.Lookup(*outIATA)
	}
	if !found && *outICAO != "" {
		airport, found = airports.Lookup(*outICAO)
	}
	if !found {
		return time.UTC, true
	}

	if *outIATA == "" {
		*outIATA = airport.IATA
	}
	if *outICAO == "" {
		*outICAO = airport.ICAO
	}

	loc, err := airport.Location()
	if err != nil {
		return time.UTC, true
	}
	return loc, false
}

type clock struct {
	hour, minute, second int
}

func parseClock(value string) (clock, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return clock{}, errors.New("missing")
	}
	layout := "15:04"
	if strings.Count(trimmed, ":") == 2 {
		layout = "15:04:05"
	}
	parsed, err := time.Parse(layout, trimmed)
	if err != nil {
		return clock{}, fmt.Errorf("unparseable %q", value)
	}
	return clock{hour: parsed.Hour(), minute: parsed.Minute(), second: parsed.Second()}, nil
}

func (c clock) before(other clock) bool {
	if c.hour != other.hour {
		return c.hour < other.hour
	}
	if c.minute != other.minute {
		return c.minute < other.minute
	}
	return c.second < other.second
}

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.hour, c.minute, c.second)
}

func atClock(date time.Time, c clock, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.hour, c.minute, c.second, 0, loc)
}
