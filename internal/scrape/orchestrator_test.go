package scrape_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tailspot/internal/logging"
	"tailspot/internal/match"
	"tailspot/internal/scrape"
	"tailspot/internal/sources"
	"tailspot/internal/store"
	"tailspot/internal/testsupport"
)

type scriptedCall struct {
	photos []sources.Photo
	err    error
}

type fakeAdapter struct {
	name   string
	mu     sync.Mutex
	calls  int
	script []scriptedCall
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(ctx context.Context, registration string) ([]sources.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	call := f.script[idx]
	return call.photos, call.err
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRegistry map[string]sources.Adapter

func (f fakeRegistry) Get(name string) (sources.Adapter, bool) {
	adapter, ok := f[name]
	return adapter, ok
}

func (f fakeRegistry) Enabled() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}

type stubNotifier struct {
	mu      sync.Mutex
	blocked []string
	batches []string
	reviews []int
}

func (s *stubNotifier) NotifyImportCompleted(context.Context, string, int, int, int) error {
	return nil
}

func (s *stubNotifier) NotifyScrapeBatchFinished(_ context.Context, succeeded, failed, photos int, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, fmt.Sprintf("%d/%d/%d", succeeded, failed, photos))
	return nil
}

func (s *stubNotifier) NotifyJobBlocked(_ context.Context, registration, source, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = append(s.blocked, source+":"+registration)
	return nil
}

func (s *stubNotifier) NotifyReviewReady(_ context.Context, pending int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, pending)
	return nil
}

func (s *stubNotifier) NotifyError(context.Context, error, string) error { return nil }
func (s *stubNotifier) TestNotification(context.Context) error           { return nil }

func (s *stubNotifier) blockedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.blocked...)
}

func (s *stubNotifier) batchCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.batches...)
}

func waitForJob(t *testing.T, st *store.Store, id int64, want store.JobStatus) *store.ScrapeJob {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %d to reach %s", id, want)
		default:
		}
		job, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestOrchestratorRunsJobToSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scrape.PollInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flight := testsupport.SeedFlight(t, st, "G-STBA", "2024-03-10")
	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	seeded, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}

	photoDate := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{name: "jetphotos", script: []scriptedCall{{
		photos: []sources.Photo{
			{
				Source:        "jetphotos",
				SourcePhotoID: "11",
				PageURL:       "https://photos.example/photo/11",
				Registration:  "G-STBA",
				AirportCode:   "LHR",
				PhotoDate:     &photoDate,
			},
			{
				Source:        "jetphotos",
				SourcePhotoID: "12",
				PageURL:       "https://photos.example/photo/12",
				Registration:  "G-STBA",
			},
		},
	}}}

	notifier := &stubNotifier{}
	rescorer := match.NewRescorer(st, cfg, logging.NewNop())
	orch := scrape.New(cfg, st, fakeRegistry{"jetphotos": adapter}, rescorer, notifier, logging.NewNop())
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(orch.Stop)

	job := waitForJob(t, st, seeded.ID, store.JobSucceeded)
	if job.PhotosFound != 2 || job.Attempts != 1 {
		t.Fatalf("unexpected finished job: %#v", job)
	}
	if job.NextScanAt == nil {
		t.Fatal("expected next scan scheduled")
	}

	candidates, err := st.CandidatesByRegistration(ctx, "G-STBA")
	if err != nil {
		t.Fatalf("CandidatesByRegistration failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Score != 100 || candidates[0].MatchedFlightID == nil || *candidates[0].MatchedFlightID != flight.ID {
		t.Fatalf("expected first candidate rescored to 100, got %#v", candidates[0])
	}
	if candidates[1].Score != 30 {
		t.Fatalf("expected bare candidate scored 30, got %d", candidates[1].Score)
	}

	runs, err := st.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != store.JobSucceeded || runs[0].PhotosFound != 2 {
		t.Fatalf("unexpected run history: %#v", runs)
	}

	// The batch summary fires once the queue drains.
	deadline := time.After(10 * time.Second)
	for len(notifier.batchCalls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected scrape batch notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if got := notifier.batchCalls()[0]; got != "1/0/2" {
		t.Fatalf("unexpected batch summary %q", got)
	}
}

func TestOrchestratorRetriesTransientFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scrape.PollInterval = 0
	cfg.Scrape.RetryBackoff = 0
	cfg.Scrape.MaxAttempts = 3
	st := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testsupport.SeedFlight(t, st, "G-STBA", "2024-03-10")
	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	seeded, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}

	adapter := &fakeAdapter{name: "jetphotos", script: []scriptedCall{
		{err: fmt.Errorf("%w: HTTP 503", sources.ErrTransient)},
		{photos: []sources.Photo{{Source: "jetphotos", SourcePhotoID: "21", Registration: "G-STBA"}}},
	}}

	rescorer := match.NewRescorer(st, cfg, logging.NewNop())
	orch := scrape.New(cfg, st, fakeRegistry{"jetphotos": adapter}, rescorer, &stubNotifier{}, logging.NewNop())
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(orch.Stop)

	job := waitForJob(t, st, seeded.ID, store.JobSucceeded)
	if job.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", job.Attempts)
	}
	if adapter.callCount() != 2 {
		t.Fatalf("expected 2 search calls, got %d", adapter.callCount())
	}

	runs, err := st.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Attempts != 2 {
		t.Fatalf("expected one run with 2 attempts, got %#v", runs)
	}
}

func TestOrchestratorFailsBlockedImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scrape.PollInterval = 0
	cfg.Scrape.MaxAttempts = 3
	st := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testsupport.SeedFlight(t, st, "G-STBA", "2024-03-10")
	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	seeded, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}

	adapter := &fakeAdapter{name: "jetphotos", script: []scriptedCall{
		{err: fmt.Errorf("%w: HTTP 403", sources.ErrBlocked)},
	}}

	notifier := &stubNotifier{}
	rescorer := match.NewRescorer(st, cfg, logging.NewNop())
	orch := scrape.New(cfg, st, fakeRegistry{"jetphotos": adapter}, rescorer, notifier, logging.NewNop())
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(orch.Stop)

	job := waitForJob(t, st, seeded.ID, store.JobFailed)
	if job.Attempts != 1 {
		t.Fatalf("expected a single attempt for blocked source, got %d", job.Attempts)
	}
	if job.LastError == "" {
		t.Fatal("expected last error recorded")
	}
	if adapter.callCount() != 1 {
		t.Fatalf("expected no retry after block, got %d calls", adapter.callCount())
	}

	deadline := time.After(10 * time.Second)
	for len(notifier.blockedCalls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected blocked notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if got := notifier.blockedCalls()[0]; got != "jetphotos:G-STBA" {
		t.Fatalf("unexpected blocked notification %q", got)
	}
}

func TestOrchestratorExhaustsTransientRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scrape.PollInterval = 0
	cfg.Scrape.RetryBackoff = 0
	cfg.Scrape.MaxAttempts = 2
	st := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testsupport.SeedFlight(t, st, "G-STBA", "2024-03-10")
	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	seeded, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}

	adapter := &fakeAdapter{name: "jetphotos", script: []scriptedCall{
		{err: fmt.Errorf("%w: HTTP 503", sources.ErrTransient)},
	}}

	rescorer := match.NewRescorer(st, cfg, logging.NewNop())
	orch := scrape.New(cfg, st, fakeRegistry{"jetphotos": adapter}, rescorer, &stubNotifier{}, logging.NewNop())
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(orch.Stop)

	job := waitForJob(t, st, seeded.ID, store.JobFailed)
	if job.Attempts != 2 {
		t.Fatalf("expected retries exhausted at 2 attempts, got %d", job.Attempts)
	}
	if adapter.callCount() != 2 {
		t.Fatalf("expected 2 search calls, got %d", adapter.callCount())
	}
}

func TestOrchestratorPauseGatesAdmission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scrape.PollInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testsupport.SeedFlight(t, st, "G-STBA", "2024-03-10")
	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	seeded, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}

	adapter := &fakeAdapter{name: "jetphotos", script: []scriptedCall{
		{photos: []sources.Photo{{Source: "jetphotos", SourcePhotoID: "31", Registration: "G-STBA"}}},
	}}

	rescorer := match.NewRescorer(st, cfg, logging.NewNop())
	orch := scrape.New(cfg, st, fakeRegistry{"jetphotos": adapter}, rescorer, &stubNotifier{}, logging.NewNop())
	orch.Pause()
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(orch.Stop)

	time.Sleep(150 * time.Millisecond)
	job, err := st.GetJob(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != store.JobQueued {
		t.Fatalf("expected job to stay queued while paused, got %s", job.Status)
	}
	if !orch.Paused() {
		t.Fatal("expected orchestrator to report paused")
	}

	orch.Resume()
	waitForJob(t, st, seeded.ID, store.JobSucceeded)
}

func TestOrchestratorSetConcurrencyClamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	rescorer := match.NewRescorer(st, cfg, logging.NewNop())
	orch := scrape.New(cfg, st, fakeRegistry{}, rescorer, &stubNotifier{}, logging.NewNop())

	if got := orch.SetConcurrency(99); got != 10 {
		t.Fatalf("expected clamp to 10, got %d", got)
	}
	if got := orch.SetConcurrency(0); got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
	if orch.Concurrency() != 1 {
		t.Fatalf("expected concurrency 1, got %d", orch.Concurrency())
	}
}
