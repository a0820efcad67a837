package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/internal/artifact"
	"github.com/sitebrief/sitebrief/internal/store"
)

// SweepStore is the slice of the job store the sweeper needs.
type SweepStore interface {
	ListExpiredCompleted(ctx context.Context, olderThan time.Time) ([]store.ExpiredArtifact, error)
	ClearArtifactPath(ctx context.Context, id uuid.UUID) error
}

// Sweeper deletes artifacts of completed jobs older than the retention
// window. It only touches terminal rows, so it can run concurrently with
// pipeline execution without coordination.
type Sweeper struct {
	store     SweepStore
	artifacts artifact.Store
	retention time.Duration
	now       func() time.Time
}

func NewSweeper(st SweepStore, artifacts artifact.Store, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     st,
		artifacts: artifacts,
		retention: retention,
		now:       time.Now,
	}
}

// SweepOnce runs one retention pass. The artifact is deleted first and the
// path cleared only on success, so a failed deletion is retried next sweep.
// Per-job failures never abort the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)

	expired, err := s.store.ListExpiredCompleted(ctx, cutoff)
	if err != nil {
		slog.Error("listing expired artifacts", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	slog.Info("retention sweep starting", "cutoff", cutoff, "expired", len(expired))

	purged := 0
	for _, e := range expired {
		if err := s.artifacts.Delete(ctx, e.ArtifactPath); err != nil {
			slog.Error("deleting expired artifact", "job_id", e.JobID,
				"artifact_path", e.ArtifactPath, "error", err)
			continue
		}
		if err := s.store.ClearArtifactPath(ctx, e.JobID); err != nil {
			slog.Error("clearing artifact path", "job_id", e.JobID, "error", err)
			continue
		}
		purged++
	}

	slog.Info("retention sweep finished", "purged", purged, "failed", len(expired)-purged)
}
