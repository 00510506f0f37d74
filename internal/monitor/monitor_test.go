package monitor_test

import (
	"context"
	"testing"
	"time"

	"tailspot/internal/monitor"
	"tailspot/internal/store"
	"tailspot/internal/testsupport"
)

type fakeState struct {
	paused      bool
	concurrency int
	inFlight    int
}

func (f fakeState) Paused() bool     { return f.paused }
func (f fakeState) Concurrency() int { return f.concurrency }
func (f fakeState) InFlight() int    { return f.inFlight }

func seedRun(t *testing.T, st *store.Store, jobID int64, seconds float64) {
	t.Helper()
	finished := time.Now().UTC()
	err := st.InsertRun(context.Background(), &store.ScrapeRun{
		JobID:           jobID,
		Registration:    "G-STBA",
		Source:          "jetphotos",
		Generation:      1,
		Outcome:         store.JobSucceeded,
		Attempts:        1,
		PhotosFound:     2,
		StartedAt:       finished.Add(-time.Duration(seconds * float64(time.Second))),
		FinishedAt:      finished,
		DurationSeconds: seconds,
	})
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
}

func TestSnapshotCountsAndETA(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, key := range []struct{ reg, source string }{
		{"G-STBA", "jetphotos"},
		{"G-STBA", "planespotters"},
		{"N12345", "jetphotos"},
	} {
		if _, err := st.EnsureJob(ctx, key.reg, key.source, now); err != nil {
			t.Fatalf("EnsureJob failed: %v", err)
		}
	}
	job, err := st.JobByKey(ctx, "N12345", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}
	if _, err := st.ClaimJob(ctx, job.ID, job.Generation); err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if _, err := st.CompleteJob(ctx, job.ID, job.Generation, 2, nil); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	seedRun(t, st, job.ID, 30)
	seedRun(t, st, job.ID, 10)

	candidate := testsupport.SeedCandidate(t, st, testsupport.NewCandidate("G-STBA", "jetphotos", "901"))
	if err := st.SetCandidateScore(ctx, candidate.ID, 80, nil); err != nil {
		t.Fatalf("SetCandidateScore failed: %v", err)
	}

	mon := monitor.New(st, cfg)
	mon.Observe(fakeState{concurrency: 2, inFlight: 1})

	snap, err := mon.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Jobs[store.JobQueued] != 2 || snap.Jobs[store.JobSucceeded] != 1 {
		t.Fatalf("unexpected job counts: %#v", snap.Jobs)
	}
	if snap.BySource["jetphotos"] != 2 || snap.BySource["planespotters"] != 1 {
		t.Fatalf("unexpected source counts: %#v", snap.BySource)
	}
	if snap.Total != 3 {
		t.Fatalf("expected 3 jobs total, got %d", snap.Total)
	}
	if snap.PendingReview != 1 {
		t.Fatalf("expected 1 pending review, got %d", snap.PendingReview)
	}
	if snap.AvgRunSeconds != 20 {
		t.Fatalf("expected average 20s, got %f", snap.AvgRunSeconds)
	}
	// Two queued jobs at 20s average across two workers.
	if snap.ETASeconds != 20 {
		t.Fatalf("expected ETA 20s, got %f", snap.ETASeconds)
	}
	if snap.Concurrency != 2 || snap.InFlight != 1 || snap.Paused {
		t.Fatalf("unexpected orchestrator state in snapshot: %+v", snap)
	}
}

func TestSnapshotWithoutRunHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}

	mon := monitor.New(st, cfg)
	snap, err := mon.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.AvgRunSeconds != 0 || snap.ETASeconds != 0 {
		t.Fatalf("expected no ETA without history, got avg %f eta %f", snap.AvgRunSeconds, snap.ETASeconds)
	}
}

func TestSnapshotClampsZeroConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.EnsureJob(ctx, "G-STBA", "jetphotos", time.Now().UTC()); err != nil {
		t.Fatalf("EnsureJob failed: %v", err)
	}
	job, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey failed: %v", err)
	}
	seedRun(t, st, job.ID, 10)

	// No orchestrator attached: the queue still drains at one worker for
	// estimation purposes.
	mon := monitor.New(st, cfg)
	snap, err := mon.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.ETASeconds != 10 {
		t.Fatalf("expected ETA 10s with clamped concurrency, got %f", snap.ETASeconds)
	}
}
