package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tailspot/internal/logging"
	"tailspot/internal/monitor"
	"tailspot/internal/sources"
	"tailspot/internal/store"
)

// runJob executes one claimed job to a terminal state, including transient
// retries. The dispatcher already holds a gate slot for it; the worker owns
// the job row until it returns.
func (o *Orchestrator) runJob(ctx context.Context, job *store.ScrapeJob) {
	defer o.gate.release()
	defer o.wg.Done()

	logger := o.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldRegistration, job.Registration),
		logging.String(logging.FieldSource, job.Source),
		logging.Int64(logging.FieldGeneration, job.Generation),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go o.heartbeatLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	start := time.Now()
	attempt := job.Attempts // the claim already counted this attempt

	adapter, ok := o.registry.Get(job.Source)
	if !ok {
		o.finishFailed(ctx, logger, job, attempt, start, fmt.Errorf("source %s is not enabled", job.Source))
		return
	}

	for {
		logger.Info("scrape attempt started", logging.Int(logging.FieldAttempt, attempt))
		photos, err := adapter.Search(ctx, job.Registration)
		if err == nil {
			o.finishSucceeded(ctx, logger, job, attempt, start, photos)
			return
		}
		if ctx.Err() != nil {
			logger.Debug("scrape interrupted by shutdown")
			return
		}
		if sources.IsTerminal(err) {
			o.finishFailed(ctx, logger, job, attempt, start, err)
			return
		}
		if attempt >= o.maxAttempts {
			o.finishFailed(ctx, logger, job, attempt, start, err)
			return
		}

		delay := o.backoffDelay(attempt)
		marked, markErr := o.store.MarkJobRetrying(ctx, job.ID, job.Generation, err.Error(), time.Now().UTC().Add(delay))
		if markErr != nil {
			if ctx.Err() == nil {
				logger.Error("failed to record retry state", logging.Error(markErr))
			}
			return
		}
		if !marked {
			logger.Warn("job superseded before retry; abandoning")
			return
		}
		o.emit(JobEvent{
			JobID:        job.ID,
			Registration: job.Registration,
			Source:       job.Source,
			Status:       store.JobRetrying,
			Attempts:     attempt,
			Error:        err.Error(),
		})
		logger.Warn("transient scrape failure, backing off",
			logging.Error(err),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration(logging.FieldDuration, delay))
		if !o.sleep(ctx, delay) {
			return
		}
		resumed, resumeErr := o.store.ResumeJobAttempt(ctx, job.ID, job.Generation)
		if resumeErr != nil {
			if ctx.Err() == nil {
				logger.Error("failed to resume after backoff", logging.Error(resumeErr))
			}
			return
		}
		if !resumed {
			logger.Warn("job reassigned during backoff; abandoning")
			return
		}
		attempt++
		o.emit(JobEvent{
			JobID:        job.ID,
			Registration: job.Registration,
			Source:       job.Source,
			Status:       store.JobRunning,
			Attempts:     attempt,
		})
	}
}

func (o *Orchestrator) finishSucceeded(ctx context.Context, logger *slog.Logger, job *store.ScrapeJob, attempt int, start time.Time, photos []sources.Photo) {
	found := len(photos)
	created := 0
	for i := range photos {
		wasNew, err := o.store.UpsertCandidate(ctx, candidateFromPhoto(&photos[i]))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.finishFailed(ctx, logger, job, attempt, start,
				fmt.Errorf("store candidate %s/%s: %w", photos[i].Source, photos[i].SourcePhotoID, err))
			return
		}
		if wasNew {
			created++
		}
	}

	applied, err := o.store.CompleteJob(ctx, job.ID, job.Generation, found, o.nextScanTime(time.Now().UTC()))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("failed to record completion", logging.Error(err))
	} else if !applied {
		logger.Warn("completion superseded by newer generation")
	}

	duration := time.Since(start)
	o.recordRun(ctx, logger, job, store.JobSucceeded, attempt, found, "", start, duration)
	monitor.ScrapeRuns.WithLabelValues(job.Source, string(store.JobSucceeded)).Inc()
	monitor.ScrapeDuration.WithLabelValues(job.Source).Observe(duration.Seconds())
	monitor.PhotosFound.WithLabelValues(job.Source).Add(float64(found))

	logger.Info("scrape succeeded",
		logging.Int(logging.FieldCount, found),
		logging.Int("new_candidates", created),
		logging.Int(logging.FieldAttempt, attempt),
		logging.Duration(logging.FieldDuration, duration))

	if _, err := o.rescorer.RescoreRegistration(ctx, job.Registration); err != nil && ctx.Err() == nil {
		logger.Warn("rescoring after scrape failed", logging.Error(err))
	}
	o.emit(JobEvent{
		JobID:        job.ID,
		Registration: job.Registration,
		Source:       job.Source,
		Status:       store.JobSucceeded,
		Attempts:     attempt,
		PhotosFound:  found,
	})
	o.noteJobFinished(store.JobSucceeded, found)
}

func (o *Orchestrator) finishFailed(ctx context.Context, logger *slog.Logger, job *store.ScrapeJob, attempt int, start time.Time, cause error) {
	message := cause.Error()
	applied, err := o.store.FailJob(ctx, job.ID, job.Generation, message)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("failed to record job failure", logging.Error(err))
	} else if !applied {
		logger.Warn("failure superseded by newer generation")
	}

	duration := time.Since(start)
	o.recordRun(ctx, logger, job, store.JobFailed, attempt, 0, message, start, duration)
	monitor.ScrapeRuns.WithLabelValues(job.Source, string(store.JobFailed)).Inc()
	monitor.ScrapeDuration.WithLabelValues(job.Source).Observe(duration.Seconds())

	logger.Error("scrape failed",
		logging.Error(cause),
		logging.Int(logging.FieldAttempt, attempt),
		logging.Duration(logging.FieldDuration, duration))

	if errors.Is(cause, sources.ErrBlocked) {
		if err := o.notifier.NotifyJobBlocked(ctx, job.Registration, job.Source, message); err != nil && ctx.Err() == nil {
			logger.Debug("blocked notification failed", logging.Error(err))
		}
	}
	o.emit(JobEvent{
		JobID:        job.ID,
		Registration: job.Registration,
		Source:       job.Source,
		Status:       store.JobFailed,
		Attempts:     attempt,
		Error:        message,
	})
	o.noteJobFinished(store.JobFailed, 0)
}

// recordRun leaves the audit row for a finished execution. Run history is
// advisory; a write failure is logged, not propagated.
func (o *Orchestrator) recordRun(ctx context.Context, logger *slog.Logger, job *store.ScrapeJob, outcome store.JobStatus, attempt, photos int, message string, start time.Time, duration time.Duration) {
	run := &store.ScrapeRun{
		JobID:           job.ID,
		Registration:    job.Registration,
		Source:          job.Source,
		Generation:      job.Generation,
		InstanceID:      o.instanceID,
		Outcome:         outcome,
		Attempts:        attempt,
		PhotosFound:     photos,
		Error:           message,
		StartedAt:       start.UTC(),
		FinishedAt:      start.Add(duration).UTC(),
		DurationSeconds: duration.Seconds(),
	}
	if err := o.store.InsertRun(ctx, run); err != nil && ctx.Err() == nil {
		logger.Warn("failed to record run history", logging.Error(err))
	}
}

func (o *Orchestrator) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	if o.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(o.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.store.UpdateJobHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				o.logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		}
	}
}

func candidateFromPhoto(photo *sources.Photo) *store.CandidatePhoto {
	return &store.CandidatePhoto{
		Source:        photo.Source,
		SourcePhotoID: photo.SourcePhotoID,
		PageURL:       photo.PageURL,
		ThumbnailURL:  photo.ThumbnailURL,
		Registration:  photo.Registration,
		AirportRaw:    photo.AirportRaw,
		AirportCode:   photo.AirportCode,
		PhotoDate:     photo.PhotoDate,
		Photographer:  photo.Photographer,
	}
}
