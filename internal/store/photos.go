package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"tailspot/internal/flightlog"
)

// ErrAlreadyDecided is returned when a review decision targets a candidate
// that has already been approved or rejected.
var ErrAlreadyDecided = errors.New("candidate already decided")

// ErrNotFound is returned by mutations that target a missing row. Read
// paths signal absence with a nil result instead.
var ErrNotFound = errors.New("not found")

const candidateColumns = "id, source, source_photo_id, page_url, thumbnail_url, registration, airport_raw, airport_code, " +
	"photo_date, photographer, score, matched_flight_id, review_state, decided_at, first_seen_at, last_seen_at"

// UpsertCandidate records a scraped photo. Existing rows keep their review
// state, decision timestamp, score, and match; only the descriptive fields
// and last_seen_at move. The return value reports whether the row is new.
func (s *Store) UpsertCandidate(ctx context.Context, photo *CandidatePhoto) (bool, error) {
	if photo == nil {
		return false, errors.New("candidate is nil")
	}
	photo.Registration = flightlog.CanonicalRegistration(photo.Registration)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE candidate_photos
         SET page_url = ?, thumbnail_url = ?, registration = ?, airport_raw = ?, airport_code = ?,
             photo_date = ?, photographer = ?, last_seen_at = ?
         WHERE source = ? AND source_photo_id = ?`,
		nullableString(photo.PageURL),
		nullableString(photo.ThumbnailURL),
		photo.Registration,
		nullableString(photo.AirportRaw),
		nullableString(photo.AirportCode),
		nullableDate(photo.PhotoDate),
		nullableString(photo.Photographer),
		timestamp,
		photo.Source,
		photo.SourcePhotoID,
	)
	if err != nil {
		return false, fmt.Errorf("update candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id, score, matched_flight_id, review_state, decided_at, first_seen_at
             FROM candidate_photos WHERE source = ? AND source_photo_id = ?`,
			photo.Source, photo.SourcePhotoID,
		)
		var (
			matched sql.NullInt64
			state   string
			decided sql.NullString
			first   string
		)
		if err := row.Scan(&photo.ID, &photo.Score, &matched, &state, &decided, &first); err != nil {
			return false, fmt.Errorf("reload candidate: %w", err)
		}
		if matched.Valid {
			photo.MatchedFlightID = &matched.Int64
		}
		photo.ReviewState = ReviewState(state)
		photo.DecidedAt = timePtr(decided)
		if seen, err := parseTimeString(first); err == nil {
			photo.FirstSeenAt = seen
		}
		photo.LastSeenAt = now
		return false, nil
	}

	res, err = s.execWithRetry(
		ctx,
		`INSERT INTO candidate_photos (
            source, source_photo_id, page_url, thumbnail_url, registration, airport_raw, airport_code,
            photo_date, photographer, score, matched_flight_id, review_state, decided_at, first_seen_at, last_seen_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, NULL, ?, ?)`,
		photo.Source,
		photo.SourcePhotoID,
		nullableString(photo.PageURL),
		nullableString(photo.ThumbnailURL),
		photo.Registration,
		nullableString(photo.AirportRaw),
		nullableString(photo.AirportCode),
		nullableDate(photo.PhotoDate),
		nullableString(photo.Photographer),
		string(ReviewPending),
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert candidate: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		photo.ID = id
	}
	photo.Score = 0
	photo.MatchedFlightID = nil
	photo.ReviewState = ReviewPending
	photo.DecidedAt = nil
	photo.FirstSeenAt = now
	photo.LastSeenAt = now
	return true, nil
}

// GetCandidate fetches one candidate photo, or nil when absent.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*CandidatePhoto, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate_photos WHERE id = ?`, id)
	photo, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return photo, nil
}

// SetCandidateScore stores a recomputed score and best-match reference.
func (s *Store) SetCandidateScore(ctx context.Context, id int64, score int, matchedFlightID *int64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE candidate_photos SET score = ?, matched_flight_id = ? WHERE id = ?`,
		score, nullableInt64(matchedFlightID), id,
	); err != nil {
		return fmt.Errorf("set candidate score: %w", err)
	}
	return nil
}

// CandidatesByRegistration returns every candidate for one airframe, for
// rescoring after new flights arrive.
func (s *Store) CandidatesByRegistration(ctx context.Context, registration string) ([]*CandidatePhoto, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+candidateColumns+` FROM candidate_photos WHERE registration = ? ORDER BY id`,
		flightlog.CanonicalRegistration(registration),
	)
	if err != nil {
		return nil, fmt.Errorf("candidates by registration: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// ReviewFilter narrows the review queue.
type ReviewFilter struct {
	Source   string
	MinScore int
	Limit    int
}

// ReviewQueue returns pending candidates ordered best-first: score, then the
// matched flight's departure date with unmatched candidates last, then ID.
// The order is total, so queue positions are stable between reads. MinScore
// zero includes low-confidence candidates; the caller applies its threshold.
func (s *Store) ReviewQueue(ctx context.Context, filter ReviewFilter) ([]*CandidatePhoto, error) {
	builder := squirrel.Select(qualifyColumns("c", candidateColumns)...).
		From("candidate_photos c").
		LeftJoin("flights f ON f.id = c.matched_flight_id").
		Where(squirrel.Eq{"c.review_state": string(ReviewPending)}).
		OrderBy("c.score DESC", "f.flight_date IS NULL", "f.flight_date ASC", "c.id ASC")
	if filter.Source != "" {
		builder = builder.Where(squirrel.Eq{"c.source": filter.Source})
	}
	if filter.MinScore > 0 {
		builder = builder.Where(squirrel.GtOrEq{"c.score": filter.MinScore})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build review query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("review queue: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// Decide applies a one-way review decision. Pending is the only state a
// decision can leave; repeat decisions return ErrAlreadyDecided.
func (s *Store) Decide(ctx context.Context, id int64, state ReviewState) (*CandidatePhoto, error) {
	if state != ReviewApproved && state != ReviewRejected {
		return nil, fmt.Errorf("invalid decision %q", state)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE candidate_photos SET review_state = ?, decided_at = ? WHERE id = ? AND review_state = ?`,
		string(state),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(ReviewPending),
	)
	if err != nil {
		return nil, fmt.Errorf("decide candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		photo, err := s.GetCandidate(ctx, id)
		if err != nil {
			return nil, err
		}
		if photo == nil {
			return nil, fmt.Errorf("candidate %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("candidate %d is %s: %w", id, photo.ReviewState, ErrAlreadyDecided)
	}
	return s.GetCandidate(ctx, id)
}

// CandidateStats counts candidates per review state.
func (s *Store) CandidateStats(ctx context.Context) (map[ReviewState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT review_state, COUNT(1) FROM candidate_photos GROUP BY review_state`)
	if err != nil {
		return nil, fmt.Errorf("candidate stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[ReviewState]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[ReviewState(state)] = count
	}
	return stats, rows.Err()
}

// PendingReviewCount counts pending candidates at or above a score threshold.
func (s *Store) PendingReviewCount(ctx context.Context, minScore int) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM candidate_photos WHERE review_state = ? AND score >= ?`,
		string(ReviewPending), minScore,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending review count: %w", err)
	}
	return count, nil
}

// LibraryFilter narrows Library output.
type LibraryFilter struct {
	Registration string
	Year         int
	Route        string
}

// Library returns approved photos joined with their matched flights, newest
// first by photo date with the flight date as fallback.
func (s *Store) Library(ctx context.Context, filter LibraryFilter) ([]*LibraryEntry, error) {
	builder := squirrel.Select(
		"c.id", "c.source", "c.source_photo_id", "c.page_url", "c.thumbnail_url", "c.registration",
		"c.airport_raw", "c.airport_code", "c.photo_date", "c.photographer", "c.score",
		"c.matched_flight_id", "c.review_state", "c.decided_at", "c.first_seen_at", "c.last_seen_at",
		"f.flight_date", "COALESCE(f.origin_iata, f.origin_icao)", "COALESCE(f.destination_iata, f.destination_icao)",
	).
		From("candidate_photos c").
		LeftJoin("flights f ON f.id = c.matched_flight_id").
		Where(squirrel.Eq{"c.review_state": string(ReviewApproved)}).
		OrderBy("COALESCE(c.photo_date, f.flight_date) DESC", "c.id DESC")
	if reg := flightlog.CanonicalRegistration(filter.Registration); reg != "" {
		builder = builder.Where(squirrel.Eq{"c.registration": reg})
	}
	if filter.Year > 0 {
		builder = builder.Where(
			squirrel.Expr("substr(COALESCE(c.photo_date, f.flight_date), 1, 4) = ?", fmt.Sprintf("%04d", filter.Year)),
		)
	}
	if filter.Route != "" {
		builder = builder.Where(
			squirrel.Expr("COALESCE(f.origin_iata, f.origin_icao) || '-' || COALESCE(f.destination_iata, f.destination_icao) = ?", filter.Route),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build library query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	defer rows.Close()

	var entries []*LibraryEntry
	for rows.Next() {
		var (
			photo      CandidatePhoto
			pageURL    sql.NullString
			thumbnail  sql.NullString
			airportRaw sql.NullString
			airport    sql.NullString
			photoDate  sql.NullString
			photog     sql.NullString
			matched    sql.NullInt64
			state      string
			decided    sql.NullString
			firstSeen  string
			lastSeen   string
			flightDate sql.NullString
			origin     sql.NullString
			dest       sql.NullString
		)
		if err := rows.Scan(
			&photo.ID, &photo.Source, &photo.SourcePhotoID, &pageURL, &thumbnail, &photo.Registration,
			&airportRaw, &airport, &photoDate, &photog, &photo.Score,
			&matched, &state, &decided, &firstSeen, &lastSeen,
			&flightDate, &origin, &dest,
		); err != nil {
			return nil, err
		}
		photo.PageURL = pageURL.String
		photo.ThumbnailURL = thumbnail.String
		photo.AirportRaw = airportRaw.String
		photo.AirportCode = airport.String
		photo.PhotoDate = datePtr(photoDate)
		photo.Photographer = photog.String
		if matched.Valid {
			photo.MatchedFlightID = &matched.Int64
		}
		photo.ReviewState = ReviewState(state)
		photo.DecidedAt = timePtr(decided)
		if seen, err := parseTimeString(firstSeen); err == nil {
			photo.FirstSeenAt = seen
		}
		if seen, err := parseTimeString(lastSeen); err == nil {
			photo.LastSeenAt = seen
		}

		entry := &LibraryEntry{Photo: photo, FlightDate: datePtr(flightDate)}
		if origin.Valid && dest.Valid {
			entry.Route = origin.String + "-" + dest.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteCandidate removes a candidate photo regardless of review state.
func (s *Store) DeleteCandidate(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM candidate_photos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func collectCandidates(rows *sql.Rows) ([]*CandidatePhoto, error) {
	var photos []*CandidatePhoto
	for rows.Next() {
		photo, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func scanCandidate(scanner interface{ Scan(dest ...any) error }) (*CandidatePhoto, error) {
	var (
		photo      CandidatePhoto
		pageURL    sql.NullString
		thumbnail  sql.NullString
		airportRaw sql.NullString
		airport    sql.NullString
		photoDate  sql.NullString
		photog     sql.NullString
		matched    sql.NullInt64
		state      string
		decided    sql.NullString
		firstSeen  string
		lastSeen   string
	)
	if err := scanner.Scan(
		&photo.ID, &photo.Source, &photo.SourcePhotoID, &pageURL, &thumbnail, &photo.Registration,
		&airportRaw, &airport, &photoDate, &photog, &photo.Score,
		&matched, &state, &decided, &firstSeen, &lastSeen,
	); err != nil {
		return nil, err
	}
	photo.PageURL = pageURL.String
	photo.ThumbnailURL = thumbnail.String
	photo.AirportRaw = airportRaw.String
	photo.AirportCode = airport.String
	photo.PhotoDate = datePtr(photoDate)
	photo.Photographer = photog.String
	if matched.Valid {
		photo.MatchedFlightID = &matched.Int64
	}
	photo.ReviewState = ReviewState(state)
	photo.DecidedAt = timePtr(decided)
	if seen, err := parseTimeString(firstSeen); err == nil {
		photo.FirstSeenAt = seen
	}
	if seen, err := parseTimeString(lastSeen); err == nil {
		photo.LastSeenAt = seen
	}
	return &photo, nil
}
