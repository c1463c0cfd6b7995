package server

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/cwbudde/blockdiff/internal/align"
	"github.com/cwbudde/blockdiff/internal/fetch"
	"github.com/cwbudde/blockdiff/internal/grid"
	"github.com/cwbudde/blockdiff/internal/opt"
	"github.com/cwbudde/blockdiff/internal/store"
)

// runJob executes a comparison job in the background. If st is not nil,
// averaged grids are read through its cache and the final report is
// persisted to it.
func runJob(ctx context.Context, jm *JobManager, st store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	cfg := job.Config
	slog.Info("Starting job", "job_id", jobID, "source_a", cfg.SourceA, "source_b", cfg.SourceB)

	imgA, err := fetch.Source(ctx, cfg.SourceA)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load first image: %w", err))
		return err
	}
	imgB, err := fetch.Source(ctx, cfg.SourceB)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load second image: %w", err))
		return err
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, start, progressDone)

	var runErr error
	if cfg.Align {
		runErr = runAlignJob(jm, jobID, imgA, imgB, cfg)
	} else {
		runErr = runCompareJob(jm, st, jobID, imgA, imgB, cfg)
	}
	close(progressDone)

	if runErr != nil {
		markJobFailed(jm, jobID, runErr)
		return runErr
	}

	elapsed := time.Since(start)
	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	job, _ = jm.GetJob(jobID)
	slog.Info("Job completed", "job_id", jobID, "score", job.Score, "elapsed", elapsed)

	if st != nil {
		report := store.NewReport(jobID, cfg, job.Score, elapsed)
		report.OffsetX = job.OffsetX
		report.OffsetY = job.OffsetY
		report.Backend = job.Backend
		if err := st.SaveReport(report); err != nil {
			slog.Warn("Failed to persist report", "job_id", jobID, "error", err)
		}
	}

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Score:     job.Score,
		Elapsed:   elapsed.Seconds(),
		Timestamp: time.Now(),
	})

	return nil
}

// runCompareJob averages both images at the configured resolution and
// scores their grids.
func runCompareJob(jm *JobManager, st store.Store, jobID string, imgA, imgB *image.NRGBA, cfg JobConfig) error {
	gridA, err := cachedAverage(st, cfg.SourceA, imgA, cfg.XSegments, cfg.YSegments)
	if err != nil {
		return err
	}
	gridB, err := cachedAverage(st, cfg.SourceB, imgB, cfg.XSegments, cfg.YSegments)
	if err != nil {
		return err
	}

	score, backend, err := scoreGrids(gridA, gridB, cfg)
	if err != nil {
		return err
	}

	return jm.UpdateJob(jobID, func(j *Job) {
		j.Score = score
		j.Backend = backend
		j.GridA = gridA
		j.GridB = gridB
	})
}

// scoreGrids applies the configured comparator variant.
func scoreGrids(gridA, gridB grid.Grid, cfg JobConfig) (float64, string, error) {
	switch {
	case cfg.Vectorized && cfg.Strict:
		score, err := grid.CompareStrictVectorized(gridA, gridB)
		return score, grid.ActiveVectorBackend().String(), err
	case cfg.Vectorized:
		score, err := grid.CompareVectorized(gridA, gridB)
		return score, grid.ActiveVectorBackend().String(), err
	case cfg.Strict:
		score, err := grid.CompareStrict(gridA, gridB)
		return score, "scalar", err
	default:
		return grid.Compare(gridA, gridB), "scalar", nil
	}
}

// runAlignJob searches for the best-matching offset of the larger image.
func runAlignJob(jm *JobManager, jobID string, imgA, imgB *image.NRGBA, cfg JobConfig) error {
	optimizer := opt.NewMayfly(cfg.Iters, cfg.PopSize, cfg.Seed)

	result, err := align.Search(imgA, imgB, align.Config{
		XSegments: cfg.XSegments,
		YSegments: cfg.YSegments,
		Iters:     cfg.Iters,
		PopSize:   cfg.PopSize,
		Seed:      cfg.Seed,
	}, optimizer)
	if err != nil {
		return err
	}

	return jm.UpdateJob(jobID, func(j *Job) {
		j.Score = result.Score
		j.OffsetX = result.OffsetX
		j.OffsetY = result.OffsetY
		j.Backend = "scalar"
	})
}

// monitorProgress periodically broadcasts progress while a job runs.
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:     jobID,
				State:     job.State,
				Score:     job.Score,
				Elapsed:   time.Since(startTime).Seconds(),
				Timestamp: time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message.
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled.
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
