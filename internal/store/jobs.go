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

const jobColumns = "id, registration, source, generation, status, attempts, photos_found, last_error, " +
	"scheduled_at, started_at, completed_at, next_scan_at, last_heartbeat, created_at, updated_at"

// EnsureJob creates the scrape job for one (registration, source) pair if it
// does not exist yet. The pair is unique for the life of the database; rescans
// reuse the row with a bumped generation.
func (s *Store) EnsureJob(ctx context.Context, registration, source string, scheduledAt time.Time) (bool, error) {
	registration = flightlog.CanonicalRegistration(registration)
	if registration == "" {
		return false, errors.New("registration is empty")
	}
	if source == "" {
		return false, errors.New("source is empty")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO scrape_jobs (registration, source, generation, status, scheduled_at, created_at, updated_at)
         VALUES (?, ?, 1, ?, ?, ?, ?)
         ON CONFLICT(registration, source) DO NOTHING`,
		registration,
		source,
		string(JobQueued),
		scheduledAt.UTC().Format(time.RFC3339Nano),
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("ensure job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetJob fetches a job by identifier, or nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*ScrapeJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scrape_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobByKey fetches the job for one (registration, source) pair.
func (s *Store) JobByKey(ctx context.Context, registration, source string) (*ScrapeJob, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs WHERE registration = ? AND source = ?`,
		flightlog.CanonicalRegistration(registration), source,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job by key: %w", err)
	}
	return job, nil
}

// JobFilter narrows ListJobs output.
type JobFilter struct {
	Statuses     []JobStatus
	Source       string
	Registration string
	Limit        int
}

// ListJobs returns jobs ordered by schedule, oldest due first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*ScrapeJob, error) {
	builder := squirrel.Select(jobColumns).
		From("scrape_jobs").
		OrderBy("scheduled_at ASC", "id ASC")
	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			values[i] = string(status)
		}
		builder = builder.Where(squirrel.Eq{"status": values})
	}
	if filter.Source != "" {
		builder = builder.Where(squirrel.Eq{"source": filter.Source})
	}
	if reg := flightlog.CanonicalRegistration(filter.Registration); reg != "" {
		builder = builder.Where(squirrel.Eq{"registration": reg})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// NextDueJobs returns queued jobs whose schedule has passed, oldest first.
// Retrying jobs are excluded: their worker still owns them through the
// backoff sleep.
func (s *Store) NextDueJobs(ctx context.Context, now time.Time, limit int) ([]*ScrapeJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs
         WHERE status = ? AND scheduled_at <= ?
         ORDER BY scheduled_at ASC, id ASC
         LIMIT ?`,
		string(JobQueued), now.UTC().Format(time.RFC3339Nano), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("next due jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ClaimJob transitions a queued job to running and counts the first attempt.
// The claim fails when another worker got there first or when a rescan
// bumped the generation since the job was listed.
func (s *Store) ClaimJob(ctx context.Context, id, generation int64) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, attempts = attempts + 1, started_at = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND generation = ? AND status = ?`,
		string(JobRunning), timestamp, timestamp, timestamp,
		id, generation, string(JobQueued),
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateJobHeartbeat records liveness for a worker-held job. Covers both
// running and the backoff sleep between attempts.
func (s *Store) UpdateJobHeartbeat(ctx context.Context, id int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		timestamp, timestamp, id, string(JobRunning), string(JobRetrying),
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// CompleteJob finishes a running job successfully and schedules its next
// scan. A stale generation leaves the row untouched.
func (s *Store) CompleteJob(ctx context.Context, id, generation int64, photosFound int, nextScan *time.Time) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, photos_found = ?, last_error = NULL, completed_at = ?, next_scan_at = ?, updated_at = ?
         WHERE id = ? AND generation = ? AND status = ?`,
		string(JobSucceeded), photosFound, timestamp, nullableTime(nextScan), timestamp,
		id, generation, string(JobRunning),
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FailJob finishes a running job terminally. A stale generation leaves the
// row untouched.
func (s *Store) FailJob(ctx context.Context, id, generation int64, message string) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, last_error = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND generation = ? AND status = ?`,
		string(JobFailed), nullableString(message), timestamp, timestamp,
		id, generation, string(JobRunning),
	)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkJobRetrying records a transient failure and the time of the next
// attempt. The worker keeps the job through the backoff sleep; the status
// makes the wait visible to listings.
func (s *Store) MarkJobRetrying(ctx context.Context, id, generation int64, message string, nextAttempt time.Time) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, last_error = ?, scheduled_at = ?, updated_at = ?
         WHERE id = ? AND generation = ? AND status = ?`,
		string(JobRetrying), nullableString(message), nextAttempt.UTC().Format(time.RFC3339Nano), timestamp,
		id, generation, string(JobRunning),
	)
	if err != nil {
		return false, fmt.Errorf("mark job retrying: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResumeJobAttempt moves a retrying job back to running for its next attempt.
// Fails when recovery took the job away from the worker while it slept.
func (s *Store) ResumeJobAttempt(ctx context.Context, id, generation int64) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND generation = ? AND status = ?`,
		string(JobRunning), timestamp, timestamp,
		id, generation, string(JobRetrying),
	)
	if err != nil {
		return false, fmt.Errorf("resume job attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RequeueDueRescans moves succeeded jobs whose next scan time has passed back
// to queued under a new generation. Returns the number of jobs requeued.
func (s *Store) RequeueDueRescans(ctx context.Context, now time.Time) (int64, error) {
	timestamp := now.UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, generation = generation + 1, attempts = 0, last_error = NULL,
             scheduled_at = ?, started_at = NULL, completed_at = NULL, next_scan_at = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND next_scan_at IS NOT NULL AND next_scan_at <= ?`,
		string(JobQueued), timestamp, timestamp,
		string(JobSucceeded), timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue rescans: %w", err)
	}
	return res.RowsAffected()
}

// RequeueJobs returns failed jobs to the queue under a new generation. With
// no ids every failed job is requeued. Returns the number requeued.
func (s *Store) RequeueJobs(ctx context.Context, ids []int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE scrape_jobs
         SET status = ?, generation = generation + 1, attempts = 0, last_error = NULL,
             scheduled_at = ?, started_at = NULL, completed_at = NULL, next_scan_at = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`
	args := []any{string(JobQueued), timestamp, timestamp, string(JobFailed)}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue jobs: %w", err)
	}
	return res.RowsAffected()
}

// RequeueTerminal starts a fresh scan for finished jobs without waiting for
// their rescan time, bumping their generation. An empty registration covers
// the whole fleet. Returns the number requeued.
func (s *Store) RequeueTerminal(ctx context.Context, registration string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE scrape_jobs
         SET status = ?, generation = generation + 1, attempts = 0, last_error = NULL,
             scheduled_at = ?, started_at = NULL, completed_at = NULL, next_scan_at = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?)`
	args := []any{string(JobQueued), timestamp, timestamp, string(JobSucceeded), string(JobFailed)}
	if registration != "" {
		query += ` AND registration = ?`
		args = append(args, flightlog.CanonicalRegistration(registration))
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetRunningJobs returns jobs left worker-held by a previous process to
// the queue. Attempts are preserved; the interrupted attempt counts.
func (s *Store) ResetRunningJobs(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, scheduled_at = ?, started_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?)`,
		string(JobQueued), timestamp, timestamp,
		string(JobRunning), string(JobRetrying),
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale requeues worker-held jobs whose heartbeat is older than the
// cutoff. A reclaimed worker that later reports in loses its terminal
// update only after a rescan bumps the generation; same-generation
// stragglers are tolerated as duplicate scans.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scrape_jobs
         SET status = ?, scheduled_at = ?, started_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?) AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		string(JobQueued), timestamp, timestamp,
		string(JobRunning), string(JobRetrying), cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates job counts by status and by source.
func (s *Store) Stats(ctx context.Context) (*JobStats, error) {
	stats := &JobStats{
		ByStatus: make(map[JobStatus]int),
		BySource: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM scrape_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[JobStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sourceRows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(1) FROM scrape_jobs GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("job stats by source: %w", err)
	}
	defer sourceRows.Close()
	for sourceRows.Next() {
		var (
			source string
			count  int
		)
		if err := sourceRows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.BySource[source] = count
	}
	return stats, sourceRows.Err()
}

func collectJobs(rows *sql.Rows) ([]*ScrapeJob, error) {
	var jobs []*ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*ScrapeJob, error) {
	var (
		job       ScrapeJob
		status    string
		lastError sql.NullString
		scheduled string
		started   sql.NullString
		completed sql.NullString
		nextScan  sql.NullString
		heartbeat sql.NullString
		created   string
		updated   string
	)
	if err := scanner.Scan(
		&job.ID, &job.Registration, &job.Source, &job.Generation, &status, &job.Attempts, &job.PhotosFound,
		&lastError, &scheduled, &started, &completed, &nextScan, &heartbeat, &created, &updated,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.LastError = lastError.String
	if at, err := parseTimeString(scheduled); err == nil {
		job.ScheduledAt = at
	}
	job.StartedAt = timePtr(started)
	job.CompletedAt = timePtr(completed)
	job.NextScanAt = timePtr(nextScan)
	job.LastHeartbeat = timePtr(heartbeat)
	if at, err := parseTimeString(created); err == nil {
		job.CreatedAt = at
	}
	if at, err := parseTimeString(updated); err == nil {
		job.UpdatedAt = at
	}
	return &job, nil
}
