// Package scheduler runs the worker's polling loop: claim one job, run it to
// completion, and drive the retention sweeper on its own timer.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sitebrief/sitebrief/internal/cache"
	"github.com/sitebrief/sitebrief/internal/report"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// jobStatusTTL bounds how long a mirrored status lives in redis.
const jobStatusTTL = 30 * time.Minute

// ClaimStore is the slice of the job store the poll loop needs.
type ClaimStore interface {
	ClaimNextPending(ctx context.Context) (*models.ReportJob, bool, error)
}

// JobRunner drives one claimed job to a terminal status.
type JobRunner interface {
	Run(ctx context.Context, job *models.ReportJob, onProgress report.ProgressFunc) error
}

// Scheduler claims and processes jobs strictly sequentially: one job is run
// to completion before the next claim attempt. Multiple worker processes may
// run schedulers against the same store; the claim protocol keeps them from
// colliding. The sweep timer is independent of whether a job was processed.
type Scheduler struct {
	store         ClaimStore
	runner        JobRunner
	sweeper       *Sweeper
	cache         cache.Cache
	pollInterval  time.Duration
	sweepInterval time.Duration

	lastSweep time.Time
	now       func() time.Time
}

func New(st ClaimStore, runner JobRunner, sweeper *Sweeper, c cache.Cache, pollInterval, sweepInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         st,
		runner:        runner,
		sweeper:       sweeper,
		cache:         c,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// Run polls until ctx is cancelled. A pipeline failure never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started",
		"poll_interval", s.pollInterval, "sweep_interval", s.sweepInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		s.sweepIfDue(ctx)

		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce attempts to claim and process at most one job.
func (s *Scheduler) RunOnce(ctx context.Context) {
	job, found, err := s.store.ClaimNextPending(ctx)
	if err != nil {
		slog.Error("claiming next pending job", "error", err)
		return
	}
	if !found {
		return
	}

	slog.Info("claimed report job", "job_id", job.ID, "project_id", job.ProjectID,
		"period_start", job.PeriodStart.Format("2006-01-02"),
		"period_end", job.PeriodEnd.Format("2006-01-02"))

	s.mirrorStatus(ctx, job, models.JobStatusProcessing)

	if err := s.runner.Run(ctx, job, s.logProgress(job)); err != nil {
		// Terminal handling already happened inside the runner; the loop
		// just records the failure and keeps going.
		slog.Error("report job failed", "job_id", job.ID, "error", err)
		s.mirrorStatus(ctx, job, models.JobStatusFailed)
		return
	}

	s.mirrorStatus(ctx, job, models.JobStatusCompleted)
}

func (s *Scheduler) sweepIfDue(ctx context.Context) {
	if s.now().Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.lastSweep = s.now()
	s.sweeper.SweepOnce(ctx)
}

func (s *Scheduler) mirrorStatus(ctx context.Context, job *models.ReportJob, status string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJobStatus(ctx, job.ID, status, jobStatusTTL); err != nil {
		slog.Warn("mirroring job status to cache", "job_id", job.ID, "error", err)
	}
}

func (s *Scheduler) logProgress(job *models.ReportJob) report.ProgressFunc {
	return func(stage, message string) {
		slog.Debug("pipeline progress", "job_id", job.ID, "stage", stage, "message", message)
	}
}
