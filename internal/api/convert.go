package api

import (
	"time"

	"tailspot/internal/flightlog"
	"tailspot/internal/monitor"
	"tailspot/internal/review"
	"tailspot/internal/store"
)

// FromJob converts a stored scrape job to its wire form.
func FromJob(job *store.ScrapeJob) JobView {
	return JobView{
		ID:           job.ID,
		Registration: job.Registration,
		Source:       job.Source,
		Generation:   job.Generation,
		Status:       string(job.Status),
		Attempts:     job.Attempts,
		PhotosFound:  job.PhotosFound,
		LastError:    job.LastError,
		ScheduledAt:  job.ScheduledAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		NextScanAt:   job.NextScanAt,
	}
}

// FromJobs converts a job list, preserving order.
func FromJobs(jobs []*store.ScrapeJob) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	return views
}

// FromRun converts a finished job execution to its wire form.
func FromRun(run *store.ScrapeRun) RunView {
	return RunView{
		ID:              run.ID,
		JobID:           run.JobID,
		Registration:    run.Registration,
		Source:          run.Source,
		Generation:      run.Generation,
		InstanceID:      run.InstanceID,
		Outcome:         string(run.Outcome),
		Attempts:        run.Attempts,
		PhotosFound:     run.PhotosFound,
		Error:           run.Error,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		DurationSeconds: run.DurationSeconds,
	}
}

// FromRuns converts a run list, preserving order.
func FromRuns(runs []*store.ScrapeRun) []RunView {
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, FromRun(run))
	}
	return views
}

// FromFlight converts an imported flight to its wire form.
func FromFlight(flight *flightlog.Flight) FlightView {
	return FlightView{
		ID:            flight.ID,
		FlightDate:    flight.FlightDate.Format(time.DateOnly),
		FlightNumber:  flight.FlightNumber,
		Airline:       flight.Airline,
		Aircraft:      flight.Aircraft,
		Registration:  flight.Registration,
		Origin:        flight.OriginCode(),
		Destination:   flight.DestinationCode(),
		Route:         flight.Route(),
		DepartureTime: flight.DepartureTime,
		ArrivalTime:   flight.ArrivalTime,
	}
}

// FromFlights converts a flight list, preserving order.
func FromFlights(flights []*flightlog.Flight) []FlightView {
	views := make([]FlightView, 0, len(flights))
	for _, flight := range flights {
		views = append(views, FromFlight(flight))
	}
	return views
}

// FromCandidate converts a scraped photo to its wire form.
func FromCandidate(photo *store.CandidatePhoto) CandidateView {
	return CandidateView{
		ID:              photo.ID,
		Source:          photo.Source,
		SourcePhotoID:   photo.SourcePhotoID,
		PageURL:         photo.PageURL,
		ThumbnailURL:    photo.ThumbnailURL,
		Registration:    photo.Registration,
		Airport:         photo.AirportRaw,
		AirportCode:     photo.AirportCode,
		PhotoDate:       photo.PhotoDate,
		Photographer:    photo.Photographer,
		Score:           photo.Score,
		MatchedFlightID: photo.MatchedFlightID,
		ReviewState:     string(photo.ReviewState),
		DecidedAt:       photo.DecidedAt,
	}
}

// FromReviewItem converts a review queue entry to its wire form.
func FromReviewItem(item *review.Item) ReviewItemView {
	view := ReviewItemView{
		Index: item.Index,
		Photo: FromCandidate(item.Photo),
	}
	if item.Flight != nil {
		flight := FromFlight(item.Flight)
		view.Flight = &flight
	}
	return view
}

// FromReviewItems converts a review queue, preserving order.
func FromReviewItems(items []*review.Item) []ReviewItemView {
	views := make([]ReviewItemView, 0, len(items))
	for _, item := range items {
		views = append(views, FromReviewItem(item))
	}
	return views
}

// FromLibraryGroup converts one registration's approved photos to wire form.
func FromLibraryGroup(group *review.LibraryGroup) LibraryGroupView {
	view := LibraryGroupView{
		Registration: group.Registration,
		Entries:      make([]LibraryEntryView, 0, len(group.Entries)),
	}
	for _, entry := range group.Entries {
		item := LibraryEntryView{
			Photo: FromCandidate(&entry.Photo),
			Route: entry.Route,
		}
		if entry.FlightDate != nil {
			item.FlightDate = entry.FlightDate.Format(time.DateOnly)
		}
		view.Entries = append(view.Entries, item)
	}
	return view
}

// FromLibraryGroups converts the library listing, preserving order.
func FromLibraryGroups(groups []*review.LibraryGroup) []LibraryGroupView {
	views := make([]LibraryGroupView, 0, len(groups))
	for _, group := range groups {
		views = append(views, FromLibraryGroup(group))
	}
	return views
}

// FromSnapshot assembles the status response from a queue snapshot. Callers
// without a daemon process pass a zero pid.
func FromSnapshot(snapshot *monitor.Snapshot, flights int, databasePath string, pid int) StatusResponse {
	jobs := make(map[string]int, len(snapshot.Jobs))
	for status, count := range snapshot.Jobs {
		jobs[string(status)] = count
	}
	return StatusResponse{
		PID:           pid,
		DatabasePath:  databasePath,
		Paused:        snapshot.Paused,
		Concurrency:   snapshot.Concurrency,
		InFlight:      snapshot.InFlight,
		Jobs:          jobs,
		JobsBySource:  snapshot.BySource,
		TotalJobs:     snapshot.Total,
		Flights:       flights,
		PendingReview: snapshot.PendingReview,
		AvgRunSeconds: snapshot.AvgRunSeconds,
		ETASeconds:    snapshot.ETASeconds,
	}
}
