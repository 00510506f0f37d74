package match

import (
	"testing"
	"time"

	"tailspot/internal/flightlog"
	"tailspot/internal/store"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}

func dayPtr(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed := day(t, value)
	return &parsed
}

func transatlantic(t *testing.T, id int64, date string) *flightlog.Flight {
	t.Helper()
	return &flightlog.Flight{
		ID:              id,
		FlightDate:      day(t, date),
		Registration:    "G-STBA",
		OriginIATA:      "JFK",
		OriginICAO:      "KJFK",
		DestinationIATA: "LHR",
		DestinationICAO: "EGLL",
	}
}

func TestScoreCombinesComponents(t *testing.T) {
	sc := &Scorer{windowDays: 3}
	flight := transatlantic(t, 1, "2024-03-10")

	cases := []struct {
		name  string
		photo store.CandidatePhoto
		want  int
	}{
		{"exact airport and date", store.CandidatePhoto{AirportCode: "LHR", PhotoDate: dayPtr(t, "2024-03-10")}, 100},
		{"origin airport counts", store.CandidatePhoto{AirportCode: "JFK", PhotoDate: dayPtr(t, "2024-03-10")}, 100},
		{"one day off", store.CandidatePhoto{AirportCode: "LHR", PhotoDate: dayPtr(t, "2024-03-11")}, 80},
		{"two days off", store.CandidatePhoto{AirportCode: "LHR", PhotoDate: dayPtr(t, "2024-03-08")}, 70},
		{"window edge", store.CandidatePhoto{AirportCode: "LHR", PhotoDate: dayPtr(t, "2024-03-13")}, 65},
		{"beyond window", store.CandidatePhoto{AirportCode: "LHR", PhotoDate: dayPtr(t, "2024-03-14")}, 60},
		{"date only", store.CandidatePhoto{PhotoDate: dayPtr(t, "2024-03-10")}, 70},
		{"airport only", store.CandidatePhoto{AirportCode: "EGLL"}, 60},
		{"wrong airport", store.CandidatePhoto{AirportCode: "CDG", PhotoDate: dayPtr(t, "2024-03-10")}, 70},
		{"registration alone", store.CandidatePhoto{}, 30},
	}
	for _, tc := range cases {
		if got := sc.Score(flight, &tc.photo); got != tc.want {
			t.Errorf("%s: score = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestScoreWiderWindowKeepsHalving(t *testing.T) {
	sc := &Scorer{windowDays: 5}
	flight := transatlantic(t, 1, "2024-03-10")

	photo := store.CandidatePhoto{PhotoDate: dayPtr(t, "2024-03-14")}
	if got := sc.Score(flight, &photo); got != 32 {
		t.Fatalf("four days off: score = %d, want 32", got)
	}
	photo.PhotoDate = dayPtr(t, "2024-03-15")
	if got := sc.Score(flight, &photo); got != 31 {
		t.Fatalf("five days off: score = %d, want 31", got)
	}
	photo.PhotoDate = dayPtr(t, "2024-03-16")
	if got := sc.Score(flight, &photo); got != 30 {
		t.Fatalf("past window: score = %d, want 30", got)
	}
}

func TestAirportMatchesAcrossCodeSystems(t *testing.T) {
	// The dataset resolves EGLL and LHR to the same airport, so a photo
	// tagged with one system matches a flight recorded in the other.
	if !airportMatches("EGLL", "LHR") {
		t.Fatal("expected ICAO photo code to match IATA flight code")
	}
	if !airportMatches("lhr", "EGLL") {
		t.Fatal("expected lowercase IATA photo code to match ICAO flight code")
	}
	// Codes the dataset does not know still match literally.
	if !airportMatches("ZZZZ", "ZZZZ") {
		t.Fatal("expected unknown codes to match on literal equality")
	}
	if airportMatches("", "LHR", "EGLL") {
		t.Fatal("expected empty photo code to never match")
	}
	if airportMatches("CDG", "LHR", "EGLL", "JFK", "KJFK") {
		t.Fatal("expected unrelated airport to stay unmatched")
	}
}

func TestBestPrefersEarliestFlightOnTie(t *testing.T) {
	sc := &Scorer{windowDays: 3}
	// Photo sits exactly between the two departures, so both flights score
	// the same and the earlier one must win.
	flights := []*flightlog.Flight{
		transatlantic(t, 2, "2024-03-10"),
		transatlantic(t, 5, "2024-03-12"),
	}
	photo := store.CandidatePhoto{AirportCode: "LHR", PhotoDate: dayPtr(t, "2024-03-11")}

	best := sc.Best(flights, &photo)
	if best.FlightID == nil || *best.FlightID != 2 {
		t.Fatalf("expected earliest flight 2 to win, got %+v", best)
	}
	if best.Score != 80 {
		t.Fatalf("expected tied score 80, got %d", best.Score)
	}
}

func TestBestWithoutFlights(t *testing.T) {
	sc := &Scorer{windowDays: 3}
	photo := store.CandidatePhoto{AirportCode: "LHR"}

	best := sc.Best(nil, &photo)
	if best.FlightID != nil || best.Score != 0 {
		t.Fatalf("expected empty result, got %+v", best)
	}
}

func TestDayDiffIgnoresClockTime(t *testing.T) {
	late := time.Date(2024, 3, 10, 23, 55, 0, 0, time.UTC)
	early := time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC)
	if got := dayDiff(late, early); got != 1 {
		t.Fatalf("dayDiff = %d, want 1", got)
	}
	if got := dayDiff(early, late); got != 1 {
		t.Fatalf("reversed dayDiff = %d, want 1", got)
	}
}
