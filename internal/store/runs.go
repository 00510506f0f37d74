package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// runHistoryWindow bounds the moving average used for throughput estimates.
const runHistoryWindow = 50

// InsertRun records a finished job execution in the audit log.
func (s *Store) InsertRun(ctx context.Context, run *ScrapeRun) error {
	if run == nil {
		return errors.New("run is nil")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO scrape_runs (job_id, registration, source, generation, instance_id, outcome, attempts, photos_found, error, started_at, finished_at, duration_seconds)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID,
		run.Registration,
		run.Source,
		run.Generation,
		nullableString(run.InstanceID),
		string(run.Outcome),
		run.Attempts,
		run.PhotosFound,
		nullableString(run.Error),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// RecentRuns returns the latest finished runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*ScrapeRun, error) {
	if limit <= 0 {
		limit = runHistoryWindow
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, registration, source, generation, instance_id, outcome, attempts, photos_found, error, started_at, finished_at, duration_seconds
         FROM scrape_runs ORDER BY finished_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*ScrapeRun
	for rows.Next() {
		var (
			run      ScrapeRun
			instance sql.NullString
			outcome  string
			runErr   sql.NullString
			started  string
			finished string
		)
		if err := rows.Scan(
			&run.ID, &run.JobID, &run.Registration, &run.Source, &run.Generation, &instance, &outcome,
			&run.Attempts, &run.PhotosFound, &runErr, &started, &finished, &run.DurationSeconds,
		); err != nil {
			return nil, err
		}
		run.InstanceID = instance.String
		run.Outcome = JobStatus(outcome)
		run.Error = runErr.String
		if at, err := parseTimeString(started); err == nil {
			run.StartedAt = at
		}
		if at, err := parseTimeString(finished); err == nil {
			run.FinishedAt = at
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// AverageRunSeconds returns the mean duration of the most recent runs, or
// zero when no runs have finished yet.
func (s *Store) AverageRunSeconds(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT AVG(duration_seconds) FROM (
            SELECT duration_seconds FROM scrape_runs ORDER BY finished_at DESC, id DESC LIMIT ?
        )`,
		runHistoryWindow,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("average run seconds: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}
