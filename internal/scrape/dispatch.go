package scrape

import (
	"context"
	"time"

	"tailspot/internal/logging"
	"tailspot/internal/store"
)

func (o *Orchestrator) dispatchLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		if !o.gate.acquire(ctx) {
			return
		}

		job, err := o.claimNext(ctx)
		if err != nil {
			o.gate.release()
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("failed to fetch due jobs", logging.Error(err))
			if !o.sleep(ctx, o.pollInterval) {
				return
			}
			continue
		}
		if job == nil {
			o.gate.release()
			o.maybeFinishBatch(ctx)
			if !o.sleep(ctx, o.pollInterval) {
				return
			}
			continue
		}

		o.noteJobStarted()
		o.emitJob(job)
		o.wg.Add(1)
		go o.runJob(ctx, job)
	}
}

// claimNext fetches a handful of due jobs and claims the first one still
// available. Returns nil when nothing is due.
func (o *Orchestrator) claimNext(ctx context.Context) (*store.ScrapeJob, error) {
	due, err := o.store.NextDueJobs(ctx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		return nil, err
	}
	for _, job := range due {
		claimed, err := o.store.ClaimJob(ctx, job.ID, job.Generation)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		return o.store.GetJob(ctx, job.ID)
	}
	return nil, nil
}

func (o *Orchestrator) rescanLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(rescanTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := o.store.RequeueDueRescans(ctx, time.Now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					o.logger.Warn("rescan scheduling failed", logging.Error(err))
				}
				continue
			}
			if count > 0 {
				o.logger.Info("requeued jobs for rescan", logging.Int64(logging.FieldCount, count))
			}
		}
	}
}

func (o *Orchestrator) reclaimLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-o.heartbeatTimeout)
			count, err := o.store.ReclaimStale(ctx, cutoff)
			if err != nil {
				if ctx.Err() == nil {
					o.logger.Warn("stale job reclaim failed", logging.Error(err))
				}
				continue
			}
			if count > 0 {
				o.logger.Warn("reclaimed jobs from stalled workers", logging.Int64(logging.FieldCount, count))
			}
		}
	}
}

// noteJobStarted opens a batch window on the first claim after idle.
func (o *Orchestrator) noteJobStarted() {
	o.mu.Lock()
	if !o.batchActive {
		o.batchActive = true
		o.batchStart = time.Now()
		o.batchSucceeded = 0
		o.batchFailed = 0
		o.batchPhotos = 0
	}
	o.mu.Unlock()
}

func (o *Orchestrator) noteJobFinished(outcome store.JobStatus, photos int) {
	o.mu.Lock()
	switch outcome {
	case store.JobSucceeded:
		o.batchSucceeded++
		o.batchPhotos += photos
	case store.JobFailed:
		o.batchFailed++
	}
	o.mu.Unlock()
}

// maybeFinishBatch closes the batch window once the queue drains and no
// worker holds a job, then sends the batch summary and review nudge.
func (o *Orchestrator) maybeFinishBatch(ctx context.Context) {
	if o.InFlight() > 0 {
		return
	}
	o.mu.Lock()
	if !o.batchActive {
		o.mu.Unlock()
		return
	}
	succeeded := o.batchSucceeded
	failed := o.batchFailed
	photos := o.batchPhotos
	duration := time.Since(o.batchStart)
	o.batchActive = false
	o.batchStart = time.Time{}
	o.mu.Unlock()

	if err := o.notifier.NotifyScrapeBatchFinished(ctx, succeeded, failed, photos, duration); err != nil && ctx.Err() == nil {
		o.logger.Debug("scrape batch notification failed", logging.Error(err))
	}
	pending, err := o.store.PendingReviewCount(ctx, o.cfg.Match.ReviewThreshold)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("pending review count unavailable", logging.Error(err))
		}
		return
	}
	if err := o.notifier.NotifyReviewReady(ctx, pending); err != nil && ctx.Err() == nil {
		o.logger.Debug("review notification failed", logging.Error(err))
	}
}
