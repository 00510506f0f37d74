package flightlog

import (
	"fmt"
	"strings"
	"time"
)

// RawRecord is one flight-log row as produced by an import parser, before
// normalization. Airport codes may be present in either or both systems and
// may be unknown to the dataset. Clock times are local to their airports.
type RawRecord struct {
	RowIndex     int
	FlightDate   string // YYYY-MM-DD, local at origin
	FlightNumber string
	Airline      string
	Aircraft     string
	Registration string

	OriginName string
	OriginCity string
	OriginIATA string
	OriginICAO string

	DestinationName string
	DestinationCity string
	DestinationIATA string
	DestinationICAO string

	DepartureTime string // HH:MM or HH:MM:SS
	ArrivalTime   string

	SeatNumber string
	SeatClass  string
	Note       string
}

// Flight is a normalized flight-log entry with resolved UTC instants.
type Flight struct {
	ID       int64
	BatchID  string
	RowIndex int

	FlightDate   time.Time // departure calendar date, local at origin
	FlightNumber string
	Airline      string
	Aircraft     string
	Registration string

	OriginName string
	OriginCity string
	OriginIATA string
	OriginICAO string

	DestinationName string
	DestinationCity string
	DestinationIATA string
	DestinationICAO string

	DepartureTime string
	ArrivalTime   string

	DepartureUTC time.Time
	ArrivalUTC   time.Time
	ArrivalDate  time.Time // arrival calendar date, local at destination

	// TimezoneDegraded marks flights whose airports could not be resolved
	// to a timezone; their clock times were interpreted as UTC.
	TimezoneDegraded bool

	SeatNumber string
	SeatClass  string
	Note       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanonicalRegistration uppercases and trims a tail number so equal aircraft
// compare equal across import formats. Hyphens are preserved; sites that
// reject them strip per request.
func CanonicalRegistration(registration string) string {
	return strings.ToUpper(strings.Join(strings.Fields(registration), ""))
}

// OriginCode returns the best available origin code for display, preferring
// IATA.
func (f *Flight) OriginCode() string {
	if f.OriginIATA != "" {
		return f.OriginIATA
	}
	return f.OriginICAO
}

// DestinationCode returns the best available destination code for display.
func (f *Flight) DestinationCode() string {
	if f.DestinationIATA != "" {
		return f.DestinationIATA
	}
	return f.DestinationICAO
}

// Route renders "JFK-LHR" style routes for listings and filters.
func (f *Flight) Route() string {
	return fmt.Sprintf("%s-%s", f.OriginCode(), f.DestinationCode())
}

// NaturalKey identifies a flight for import deduplication: date, number,
// registration, and route. Rows missing fields still form a stable key.
func (f *Flight) NaturalKey() string {
	return strings.Join([]string{
		f.FlightDate.Format(time.DateOnly),
		strings.ToUpper(strings.TrimSpace(f.FlightNumber)),
		CanonicalRegistration(f.Registration),
		f.OriginCode(),
		f.DestinationCode(),
	}, "|")
}
