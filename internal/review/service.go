package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tailspot/internal/config"
	"tailspot/internal/flightlog"
	"tailspot/internal/logging"
	"tailspot/internal/store"
)

// ErrNotQueued is returned when a deep link names a candidate that is not in
// the requested queue view.
var ErrNotQueued = errors.New("candidate is not in the review queue")

// Options select which candidates a queue view includes.
type Options struct {
	// LowConfidence includes candidates scoring below the review threshold.
	LowConfidence bool
}

// Item is one queue entry: the candidate, its best-matched flight when one
// exists, and its position in the view.
type Item struct {
	Photo  *store.CandidatePhoto
	Flight *flightlog.Flight
	Index  int
	Total  int
}

// LibraryGroup collects one registration's approved photos, newest first.
type LibraryGroup struct {
	Registration string
	Entries      []*store.LibraryEntry
}

// Service navigates pending candidates and applies one-way decisions.
type Service struct {
	store     *store.Store
	threshold int
	logger    *slog.Logger
}

// NewService builds the review service. The config supplies the confidence
// threshold that separates the default view from the low-confidence one.
func NewService(st *store.Store, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		threshold: cfg.Match.ReviewThreshold,
		logger:    logging.NewComponentLogger(logger, "review"),
	}
}

// Queue returns the reviewable candidates in navigation order with their
// matched flights attached.
func (s *Service) Queue(ctx context.Context, opts Options) ([]*Item, error) {
	photos, err := s.store.ReviewQueue(ctx, store.ReviewFilter{MinScore: s.minScore(opts)})
	if err != nil {
		return nil, err
	}
	items := make([]*Item, len(photos))
	for i, photo := range photos {
		flight, err := s.matchedFlight(ctx, photo)
		if err != nil {
			return nil, err
		}
		items[i] = &Item{Photo: photo, Flight: flight, Index: i, Total: len(photos)}
	}
	return items, nil
}

// Count reports how many candidates the view contains.
func (s *Service) Count(ctx context.Context, opts Options) (int, error) {
	return s.store.PendingReviewCount(ctx, s.minScore(opts))
}

// At returns the entry at a queue position. Out-of-range indexes clamp to
// the nearest end; an empty queue returns nil.
func (s *Service) At(ctx context.Context, index int, opts Options) (*Item, error) {
	items, err := s.Queue(ctx, opts)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	if index < 0 {
		index = 0
	}
	if index >= len(items) {
		index = len(items) - 1
	}
	return items[index], nil
}

// Locate resolves a candidate ID to its current queue position. Decided,
// filtered, and unknown candidates return ErrNotQueued.
func (s *Service) Locate(ctx context.Context, id int64, opts Options) (*Item, error) {
	items, err := s.Queue(ctx, opts)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Photo.ID == id {
			return item, nil
		}
	}
	return nil, fmt.Errorf("candidate %d: %w", id, ErrNotQueued)
}

// Approve marks a pending candidate as a library photo.
func (s *Service) Approve(ctx context.Context, id int64) (*store.CandidatePhoto, error) {
	return s.decide(ctx, id, store.ReviewApproved)
}

// Reject hides a pending candidate. The row is kept so rescans cannot bring
// the photo back as pending.
func (s *Service) Reject(ctx context.Context, id int64) (*store.CandidatePhoto, error) {
	return s.decide(ctx, id, store.ReviewRejected)
}

func (s *Service) decide(ctx context.Context, id int64, state store.ReviewState) (*store.CandidatePhoto, error) {
	photo, err := s.store.Decide(ctx, id, state)
	if err != nil {
		return nil, err
	}
	s.logger.Info("candidate decided",
		logging.Int64(logging.FieldPhotoID, id),
		logging.String(logging.FieldState, string(state)),
		logging.String(logging.FieldRegistration, photo.Registration))
	return photo, nil
}

// Delete removes a candidate regardless of review state. A future rescan may
// legitimately re-create the photo as pending.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteCandidate(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("candidate deleted", logging.Int64(logging.FieldPhotoID, id))
	}
	return deleted, nil
}

// Library returns approved photos grouped by registration. Groups appear in
// order of their newest photo; entries within a group stay newest first.
func (s *Service) Library(ctx context.Context, filter store.LibraryFilter) ([]*LibraryGroup, error) {
	entries, err := s.store.Library(ctx, filter)
	if err != nil {
		return nil, err
	}
	var groups []*LibraryGroup
	index := make(map[string]*LibraryGroup)
	for _, entry := range entries {
		group, ok := index[entry.Photo.Registration]
		if !ok {
			group = &LibraryGroup{Registration: entry.Photo.Registration}
			index[entry.Photo.Registration] = group
			groups = append(groups, group)
		}
		group.Entries = append(group.Entries, entry)
	}
	return groups, nil
}

func (s *Service) minScore(opts Options) int {
	if opts.LowConfidence {
		return 0
	}
	return s.threshold
}

func (s *Service) matchedFlight(ctx context.Context, photo *store.CandidatePhoto) (*flightlog.Flight, error) {
	if photo.MatchedFlightID == nil {
		return nil, nil
	}
	flight, err := s.store.GetFlight(ctx, *photo.MatchedFlightID)
	if err != nil {
		return nil, fmt.Errorf("load matched flight %d: %w", *photo.MatchedFlightID, err)
	}
	return flight, nil
}
