package monitor

import (
	"context"
	"fmt"

	"tailspot/internal/config"
	"tailspot/internal/store"
)

// WorkerState reports live orchestrator state the store cannot see.
type WorkerState interface {
	Paused() bool
	Concurrency() int
	InFlight() int
}

// idleState stands in before the orchestrator is attached.
type idleState struct{}

func (idleState) Paused() bool     { return false }
func (idleState) Concurrency() int { return 0 }
func (idleState) InFlight() int    { return 0 }

// Snapshot is one observation of the pipeline.
type Snapshot struct {
	Paused      bool
	Concurrency int
	InFlight    int

	Jobs     map[store.JobStatus]int
	BySource map[string]int
	Total    int

	PendingReview int

	// AvgRunSeconds is zero until at least one run has finished.
	AvgRunSeconds float64
	// ETASeconds estimates drain time for the queued backlog. Zero when the
	// queue is empty or no run history exists yet.
	ETASeconds float64
}

// Monitor computes snapshots and refreshes the pipeline gauges.
type Monitor struct {
	store     *store.Store
	state     WorkerState
	threshold int
}

// New builds a monitor over the store. The orchestrator is attached later
// via Observe once it exists.
func New(st *store.Store, cfg *config.Config) *Monitor {
	return &Monitor{store: st, state: idleState{}, threshold: cfg.Match.ReviewThreshold}
}

// Observe attaches the orchestrator. The daemon wires this before serving,
// so snapshots never race a swap.
func (m *Monitor) Observe(state WorkerState) {
	if state != nil {
		m.state = state
	}
}

// Snapshot reads current counts from the store and live orchestrator state,
// updating the gauge metrics along the way.
func (m *Monitor) Snapshot(ctx context.Context) (*Snapshot, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	pending, err := m.store.PendingReviewCount(ctx, m.threshold)
	if err != nil {
		return nil, fmt.Errorf("pending review count: %w", err)
	}
	avg, err := m.store.AverageRunSeconds(ctx)
	if err != nil {
		return nil, fmt.Errorf("average run duration: %w", err)
	}

	snap := &Snapshot{
		Paused:        m.state.Paused(),
		Concurrency:   m.state.Concurrency(),
		InFlight:      m.state.InFlight(),
		Jobs:          stats.ByStatus,
		BySource:      stats.BySource,
		Total:         stats.Total,
		PendingReview: pending,
		AvgRunSeconds: avg,
	}
	queued := stats.ByStatus[store.JobQueued]
	if queued > 0 && avg > 0 {
		workers := snap.Concurrency
		if workers < 1 {
			workers = 1
		}
		snap.ETASeconds = float64(queued) * avg / float64(workers)
	}

	QueueDepth.Set(float64(queued))
	InFlightJobs.Set(float64(snap.InFlight))
	ReviewPending.Set(float64(pending))
	return snap, nil
}
