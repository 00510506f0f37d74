package store

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a scrape job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobRetrying  JobStatus = "retrying"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

var allJobStatuses = []JobStatus{
	JobQueued,
	JobRunning,
	JobRetrying,
	JobSucceeded,
	JobFailed,
}

// ParseJobStatus validates a user-supplied status string.
func ParseJobStatus(value string) (JobStatus, error) {
	candidate := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allJobStatuses {
		if candidate == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// Active reports whether a job occupies (or will occupy) a worker.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobRunning || s == JobRetrying
}

// Terminal reports whether the job reached an end state for its generation.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// ReviewState represents the one-way review lifecycle of a candidate photo.
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewApproved ReviewState = "approved"
	ReviewRejected ReviewState = "rejected"
)

// ParseReviewState validates a user-supplied review state string.
func ParseReviewState(value string) (ReviewState, error) {
	switch candidate := ReviewState(strings.ToLower(strings.TrimSpace(value))); candidate {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return candidate, nil
	}
	return "", fmt.Errorf("unknown review state %q", value)
}

// ScrapeJob is one (registration, source) unit of scraping work.
type ScrapeJob struct {
	ID           int64
	Registration string
	Source       string
	Generation   int64
	Status       JobStatus
	Attempts     int
	PhotosFound  int
	LastError    string

	ScheduledAt   time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	NextScanAt    *time.Time
	LastHeartbeat *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScrapeRun is the audit row a finished job execution leaves behind.
type ScrapeRun struct {
	ID              int64
	JobID           int64
	Registration    string
	Source          string
	Generation      int64
	InstanceID      string
	Outcome         JobStatus
	Attempts        int
	PhotosFound     int
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
	DurationSeconds float64
}

// CandidatePhoto is a scraped photo awaiting (or past) review.
type CandidatePhoto struct {
	ID            int64
	Source        string
	SourcePhotoID string
	PageURL       string
	ThumbnailURL  string
	Registration  string
	AirportRaw    string
	AirportCode   string
	PhotoDate     *time.Time
	Photographer  string

	Score           int
	MatchedFlightID *int64
	ReviewState     ReviewState
	DecidedAt       *time.Time

	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// LibraryEntry joins an approved photo with its matched flight for display.
type LibraryEntry struct {
	Photo      CandidatePhoto
	FlightDate *time.Time
	Route      string
}

// JobStats aggregates job counts for monitor output.
type JobStats struct {
	ByStatus map[JobStatus]int
	BySource map[string]int
	Total    int
}
