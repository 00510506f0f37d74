package match

import (
	"context"
	"fmt"
	"log/slog"

	"tailspot/internal/config"
	"tailspot/internal/flightlog"
	"tailspot/internal/logging"
	"tailspot/internal/store"
)

// Rescorer recomputes stored candidate scores against the current flight
// log. It never touches review state: approved and rejected candidates keep
// their decision and only their score and matched flight move.
type Rescorer struct {
	store  *store.Store
	scorer *Scorer
	logger *slog.Logger
}

// NewRescorer builds a rescorer bound to the given store.
func NewRescorer(st *store.Store, cfg *config.Config, logger *slog.Logger) *Rescorer {
	return &Rescorer{
		store:  st,
		scorer: NewScorer(cfg),
		logger: logging.NewComponentLogger(logger, "match"),
	}
}

// RescoreRegistration recomputes every candidate for one registration and
// returns how many stored scores changed. A registration whose flights were
// all deleted zeroes its candidates rather than leaving stale scores.
func (r *Rescorer) RescoreRegistration(ctx context.Context, registration string) (int, error) {
	canonical := flightlog.CanonicalRegistration(registration)
	flights, err := r.store.FlightsByRegistration(ctx, canonical)
	if err != nil {
		return 0, fmt.Errorf("load flights for %s: %w", canonical, err)
	}
	candidates, err := r.store.CandidatesByRegistration(ctx, canonical)
	if err != nil {
		return 0, fmt.Errorf("load candidates for %s: %w", canonical, err)
	}

	updated := 0
	for _, candidate := range candidates {
		result := r.scorer.Best(flights, candidate)
		if candidate.Score == result.Score && sameFlight(candidate.MatchedFlightID, result.FlightID) {
			continue
		}
		if err := r.store.SetCandidateScore(ctx, candidate.ID, result.Score, result.FlightID); err != nil {
			return updated, fmt.Errorf("store score for candidate %d: %w", candidate.ID, err)
		}
		updated++
	}
	if updated > 0 {
		r.logger.Info("rescored candidates",
			logging.String(logging.FieldRegistration, canonical),
			logging.Int(logging.FieldCount, updated))
	}
	return updated, nil
}

// RescoreAll walks every registration in the flight log. Candidates for
// registrations no longer present are left to RescoreRegistration calls from
// the deletion path.
func (r *Rescorer) RescoreAll(ctx context.Context) (int, error) {
	registrations, err := r.store.Registrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}
	total := 0
	for _, registration := range registrations {
		updated, err := r.RescoreRegistration(ctx, registration)
		if err != nil {
			return total, err
		}
		total += updated
	}
	return total, nil
}

func sameFlight(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
