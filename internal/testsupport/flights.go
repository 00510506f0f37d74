package testsupport

import (
	"context"
	"testing"
	"time"

	"tailspot/internal/flightlog"
	"tailspot/internal/store"
)

// NewFlight builds a normalized transatlantic flight for the given
// registration and departure date (YYYY-MM-DD).
func NewFlight(t testing.TB, registration, date string) *flightlog.Flight {
	t.Helper()

	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	departure := time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, time.UTC)
	return &flightlog.Flight{
		BatchID:         "test-batch",
		FlightDate:      day,
		FlightNumber:    "BA114",
		Airline:         "British Airways",
		Aircraft:        "Boeing 777-200",
		Registration:    flightlog.CanonicalRegistration(registration),
		OriginIATA:      "JFK",
		OriginICAO:      "KJFK",
		DestinationIATA: "LHR",
		DestinationICAO: "EGLL",
		DepartureTime:   "09:00",
		ArrivalTime:     "21:00",
		DepartureUTC:    departure,
		ArrivalUTC:      departure.Add(7 * time.Hour),
		ArrivalDate:     day,
	}
}

// SeedFlight inserts a flight built by NewFlight and returns it with its
// assigned ID.
func SeedFlight(t testing.TB, st *store.Store, registration, date string) *flightlog.Flight {
	t.Helper()

	flight := NewFlight(t, registration, date)
	inserted, err := st.InsertFlight(context.Background(), flight)
	if err != nil {
		t.Fatalf("insert flight: %v", err)
	}
	if !inserted {
		t.Fatalf("flight %s was deduplicated unexpectedly", flight.NaturalKey())
	}
	return flight
}
