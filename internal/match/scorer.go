package match

import (
	"time"

	"tailspot/internal/airports"
	"tailspot/internal/config"
	"tailspot/internal/flightlog"
	"tailspot/internal/store"
)

const (
	registrationWeight = 30
	airportWeight      = 30
	dateWeightMax      = 40
	maxScore           = 100
)

// Result is the outcome of scoring one candidate against the flight log.
// FlightID is nil when no flight shares the candidate's registration.
type Result struct {
	FlightID *int64
	Score    int
}

// Scorer computes candidate scores. The date window bounds how far a photo
// date may drift from a departure date and still contribute.
type Scorer struct {
	windowDays int
}

// NewScorer builds a scorer from the matching configuration.
func NewScorer(cfg *config.Config) *Scorer {
	return &Scorer{windowDays: cfg.Match.DateWindowDays}
}

// Score combines the three components for one flight and photo pair. The
// caller guarantees the pair shares a registration.
func (sc *Scorer) Score(flight *flightlog.Flight, photo *store.CandidatePhoto) int {
	score := registrationWeight
	if airportMatches(photo.AirportCode,
		flight.OriginIATA, flight.OriginICAO,
		flight.DestinationIATA, flight.DestinationICAO) {
		score += airportWeight
	}
	score += sc.dateWeight(photo.PhotoDate, flight.FlightDate)
	if score > maxScore {
		score = maxScore
	}
	return score
}

// Best selects the winning flight for a photo. Flights must be ordered by
// departure date then ID; ties keep the first candidate seen.
func (sc *Scorer) Best(flights []*flightlog.Flight, photo *store.CandidatePhoto) Result {
	var best Result
	for _, flight := range flights {
		score := sc.Score(flight, photo)
		if best.FlightID == nil || score > best.Score {
			id := flight.ID
			best = Result{FlightID: &id, Score: score}
		}
	}
	return best
}

// dateWeight halves per day of distance from the departure date and is zero
// beyond the window. Spotter sites report local dates, so the comparison uses
// the local departure date rather than UTC.
func (sc *Scorer) dateWeight(photoDate *time.Time, departure time.Time) int {
	if photoDate == nil || photoDate.IsZero() || departure.IsZero() {
		return 0
	}
	days := dayDiff(*photoDate, departure)
	if days > sc.windowDays {
		return 0
	}
	return dateWeightMax >> days
}

// airportMatches compares the photo's airport against the flight's endpoint
// codes in both systems. Codes unknown to the dataset still match on literal
// equality.
func airportMatches(photoCode string, flightCodes ...string) bool {
	normalized := airports.NormalizeCode(photoCode)
	if normalized == "" {
		return false
	}
	canonical := airports.Canonical(normalized)
	for _, code := range flightCodes {
		if code == "" {
			continue
		}
		if airports.NormalizeCode(code) == normalized || airports.Canonical(code) == canonical {
			return true
		}
	}
	return false
}

// dayDiff counts whole calendar days between two dates, ignoring any time of
// day or location they carry.
func dayDiff(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ua.Sub(ub) / (24 * time.Hour))
	if days < 0 {
		return -days
	}
	return days
}
