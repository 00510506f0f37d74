package api

import "time"

// StatusResponse describes the daemon process and its queue at a point in time.
type StatusResponse struct {
	PID          int    `json:"pid"`
	DatabasePath string `json:"database_path"`

	Paused      bool `json:"paused"`
	Concurrency int  `json:"concurrency"`
	InFlight    int  `json:"in_flight"`

	Jobs          map[string]int `json:"jobs"`
	JobsBySource  map[string]int `json:"jobs_by_source"`
	TotalJobs     int            `json:"total_jobs"`
	Flights       int            `json:"flights"`
	PendingReview int            `json:"pending_review"`

	AvgRunSeconds float64 `json:"avg_run_seconds"`
	ETASeconds    float64 `json:"eta_seconds"`
}

// JobView is the wire form of a scrape job.
type JobView struct {
	ID           int64  `json:"id"`
	Registration string `json:"registration"`
	Source       string `json:"source"`
	Generation   int64  `json:"generation"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	PhotosFound  int    `json:"photos_found"`
	LastError    string `json:"last_error,omitempty"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextScanAt  *time.Time `json:"next_scan_at,omitempty"`
}

// QueueResponse lists jobs matching a queue query.
type QueueResponse struct {
	Jobs []JobView `json:"jobs"`
}

// RunView is the wire form of one finished job execution.
type RunView struct {
	ID              int64     `json:"id"`
	JobID           int64     `json:"job_id"`
	Registration    string    `json:"registration"`
	Source          string    `json:"source"`
	Generation      int64     `json:"generation"`
	InstanceID      string    `json:"instance_id,omitempty"`
	Outcome         string    `json:"outcome"`
	Attempts        int       `json:"attempts"`
	PhotosFound     int       `json:"photos_found"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// RunsResponse lists recent run history, newest first.
type RunsResponse struct {
	Runs []RunView `json:"runs"`
}

// FlightView is the wire form of an imported flight.
type FlightView struct {
	ID           int64  `json:"id"`
	FlightDate   string `json:"flight_date"`
	FlightNumber string `json:"flight_number,omitempty"`
	Airline      string `json:"airline,omitempty"`
	Aircraft     string `json:"aircraft,omitempty"`
	Registration string `json:"registration,omitempty"`

	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Route       string `json:"route"`

	DepartureTime string `json:"departure_time,omitempty"`
	ArrivalTime   string `json:"arrival_time,omitempty"`
}

// FlightsResponse lists flights newest-first.
type FlightsResponse struct {
	Flights []FlightView `json:"flights"`
}

// CandidateView is the wire form of a scraped photo.
type CandidateView struct {
	ID            int64      `json:"id"`
	Source        string     `json:"source"`
	SourcePhotoID string     `json:"source_photo_id"`
	PageURL       string     `json:"page_url"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	Registration  string     `json:"registration"`
	Airport       string     `json:"airport,omitempty"`
	AirportCode   string     `json:"airport_code,omitempty"`
	PhotoDate     *time.Time `json:"photo_date,omitempty"`
	Photographer  string     `json:"photographer,omitempty"`

	Score           int        `json:"score"`
	MatchedFlightID *int64     `json:"matched_flight_id,omitempty"`
	ReviewState     string     `json:"review_state"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
}

// ReviewItemView pairs a pending candidate with its matched flight and its
// position in the queue's total order.
type ReviewItemView struct {
	Index  int           `json:"index"`
	Photo  CandidateView `json:"photo"`
	Flight *FlightView   `json:"flight,omitempty"`
}

// ReviewResponse is the review queue with the caller's current position.
type ReviewResponse struct {
	Total int              `json:"total"`
	Index int              `json:"index"`
	Items []ReviewItemView `json:"items"`
}

// LibraryEntryView is one approved photo in the library.
type LibraryEntryView struct {
	Photo      CandidateView `json:"photo"`
	FlightDate string        `json:"flight_date,omitempty"`
	Route      string        `json:"route,omitempty"`
}

// LibraryGroupView groups a registration's approved photos.
type LibraryGroupView struct {
	Registration string             `json:"registration"`
	Entries      []LibraryEntryView `json:"entries"`
}

// LibraryResponse lists registrations in order of their newest photo.
type LibraryResponse struct {
	Groups []LibraryGroupView `json:"groups"`
}

// ConcurrencyRequest sets the worker limit.
type ConcurrencyRequest struct {
	Concurrency int `json:"concurrency"`
}

// ConcurrencyResponse reports the limit after clamping.
type ConcurrencyResponse struct {
	Concurrency int `json:"concurrency"`
}

// RegistrationRequest scopes a queue action to one aircraft. An empty
// registration covers the whole fleet.
type RegistrationRequest struct {
	Registration string `json:"registration"`
}

// CountResponse reports how many rows an action touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// PausedResponse reports the dispatcher's admission state.
type PausedResponse struct {
	Paused bool `json:"paused"`
}

// Event types on the /api/events stream.
const (
	EventJob    = "job"
	EventReview = "review"
)

// Event is one message on the websocket stream.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// ReviewEvent announces a review decision on the event stream.
type ReviewEvent struct {
	PhotoID      int64  `json:"photo_id"`
	Registration string `json:"registration"`
	State        string `json:"state"`
}
