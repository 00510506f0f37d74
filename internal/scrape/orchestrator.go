package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailspot/internal/config"
	"tailspot/internal/logging"
	"tailspot/internal/match"
	"tailspot/internal/notifications"
	"tailspot/internal/sources"
	"tailspot/internal/store"
)

// rescanTick bounds how late a due rescan can start.
const rescanTick = time.Minute

// claimBatchSize is how many due jobs one dispatch pass fetches. More than
// one so a lost claim race does not cost a whole poll interval.
const claimBatchSize = 5

// Searcher is the subset of the source registry the orchestrator needs.
type Searcher interface {
	Get(name string) (sources.Adapter, bool)
	Enabled() []string
}

// JobEvent is one job state transition on the live event stream.
type JobEvent struct {
	JobID        int64           `json:"job_id"`
	Registration string          `json:"registration"`
	Source       string          `json:"source"`
	Status       store.JobStatus `json:"status"`
	Attempts     int             `json:"attempts"`
	PhotosFound  int             `json:"photos_found,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Events receives job transitions for live surfaces. Implementations must
// return quickly; the dispatcher and workers are the callers.
type Events interface {
	JobChanged(event JobEvent)
}

// Orchestrator coordinates scrape jobs: claiming due work, bounding worker
// admissions, retrying transient failures inside the owning worker, and
// scheduling rescans.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	registry Searcher
	rescorer *match.Rescorer
	notifier notifications.Service
	events   Events
	logger   *slog.Logger

	// instanceID identifies this process in run history rows.
	instanceID string

	gate *gate

	pollInterval      time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	retryBackoff      time.Duration
	retryBackoffMax   time.Duration
	rescanInterval    time.Duration
	maxAttempts       int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	batchActive    bool
	batchStart     time.Time
	batchSucceeded int
	batchFailed    int
	batchPhotos    int
}

// New constructs an orchestrator. The registry decides which sources exist;
// jobs for sources no longer enabled fail terminally when claimed.
func New(cfg *config.Config, st *store.Store, registry Searcher, rescorer *match.Rescorer, notifier notifications.Service, logger *slog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		registry: registry,
		rescorer: rescorer,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "scrape"),

		instanceID: uuid.NewString(),

		gate: newGate(clampConcurrency(cfg.Scrape.Concurrency)),

		pollInterval:      time.Duration(cfg.Scrape.PollInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Scrape.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Scrape.HeartbeatTimeout) * time.Second,
		retryBackoff:      time.Duration(cfg.Scrape.RetryBackoff) * time.Second,
		retryBackoffMax:   time.Duration(cfg.Scrape.RetryBackoffMax) * time.Second,
		rescanInterval:    time.Duration(cfg.Scrape.RescanIntervalHours) * time.Hour,
		maxAttempts:       cfg.Scrape.MaxAttempts,
	}
}

// Start begins background processing. Jobs left worker-held by a previous
// process are requeued first.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("scrape orchestrator already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.mu.Unlock()

	reset, err := o.store.ResetRunningJobs(runCtx)
	if err != nil {
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
		cancel()
		return fmt.Errorf("reset interrupted jobs: %w", err)
	}
	if reset > 0 {
		o.logger.Info("requeued jobs interrupted by shutdown", logging.Int64(logging.FieldCount, reset))
	}

	loops := []func(context.Context){o.dispatchLoop, o.rescanLoop}
	if o.heartbeatTimeout > 0 {
		loops = append(loops, o.reclaimLoop)
	}
	o.wg.Add(len(loops))
	for _, loop := range loops {
		go loop(runCtx)
	}
	return nil
}

// SetEvents wires the live transition sink. Wire before Start; transitions
// are dropped while unset.
func (o *Orchestrator) SetEvents(events Events) {
	o.events = events
}

// InstanceID returns the identifier stamped on run history rows written by
// this process.
func (o *Orchestrator) InstanceID() string {
	return o.instanceID
}

func (o *Orchestrator) emit(event JobEvent) {
	if o.events != nil {
		o.events.JobChanged(event)
	}
}

func (o *Orchestrator) emitJob(job *store.ScrapeJob) {
	o.emit(JobEvent{
		JobID:        job.ID,
		Registration: job.Registration,
		Source:       job.Source,
		Status:       job.Status,
		Attempts:     job.Attempts,
		PhotosFound:  job.PhotosFound,
		Error:        job.LastError,
	})
}

// Stop terminates background processing and waits for in-flight workers.
// Jobs interrupted mid-attempt stay worker-held in the store and are reset
// on the next Start.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

// Pause stops admitting new jobs. Running workers finish normally,
// including their retry cycles.
func (o *Orchestrator) Pause() {
	o.gate.pause()
	o.logger.Info("scraping paused")
}

// Resume reopens admission.
func (o *Orchestrator) Resume() {
	o.gate.resume()
	o.logger.Info("scraping resumed")
}

// Paused reports whether admission is gated.
func (o *Orchestrator) Paused() bool {
	_, _, paused := o.gate.snapshot()
	return paused
}

// Concurrency reports the current worker limit.
func (o *Orchestrator) Concurrency() int {
	limit, _, _ := o.gate.snapshot()
	return limit
}

// InFlight reports how many jobs workers currently hold, backoff sleeps
// included.
func (o *Orchestrator) InFlight() int {
	_, inUse, _ := o.gate.snapshot()
	return inUse
}

// SetConcurrency adjusts the worker limit at runtime and returns the
// clamped value. Shrinking never aborts running workers.
func (o *Orchestrator) SetConcurrency(limit int) int {
	applied := clampConcurrency(limit)
	o.gate.resize(applied)
	o.logger.Info("worker limit changed", logging.Int(logging.FieldCount, applied))
	return applied
}

// Rescan requeues finished jobs immediately, for the whole fleet when
// registration is empty. Returns the number of jobs requeued.
func (o *Orchestrator) Rescan(ctx context.Context, registration string) (int64, error) {
	count, err := o.store.RequeueTerminal(ctx, registration)
	if err != nil {
		return 0, fmt.Errorf("requeue for rescan: %w", err)
	}
	if count > 0 {
		o.logger.Info("manual rescan requested",
			logging.String(logging.FieldRegistration, registration),
			logging.Int64(logging.FieldCount, count))
	}
	return count, nil
}

func clampConcurrency(limit int) int {
	if limit < config.ConcurrencyMin {
		return config.ConcurrencyMin
	}
	if limit > config.ConcurrencyMax {
		return config.ConcurrencyMax
	}
	return limit
}

// nextScanTime returns when a succeeded job should scan again, or nil when
// rescans are disabled.
func (o *Orchestrator) nextScanTime(now time.Time) *time.Time {
	if o.rescanInterval <= 0 {
		return nil
	}
	next := now.Add(o.rescanInterval)
	return &next
}

// backoffDelay doubles per failed attempt from the configured base, capped
// at the configured ceiling. Jitterless: a single-user scraper gains
// nothing from desynchronizing with itself.
func (o *Orchestrator) backoffDelay(failedAttempts int) time.Duration {
	delay := o.retryBackoff
	for i := 1; i < failedAttempts; i++ {
		delay *= 2
		if delay >= o.retryBackoffMax {
			return o.retryBackoffMax
		}
	}
	if o.retryBackoffMax > 0 && delay > o.retryBackoffMax {
		return o.retryBackoffMax
	}
	return delay
}

// sleep waits for d unless ctx ends first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
