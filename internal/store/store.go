package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// MaxListLimit caps how many jobs a single list query returns. Callers
// clamp to it rather than getting silently fewer rows than they asked for.
const MaxListLimit = 200

// ErrInvalidTransition is returned when a status write finds the job in an
// unexpected state (e.g. MarkCompleted on a job that is not processing). The
// job row is left untouched.
var ErrInvalidTransition = errors.New("invalid job status transition")

// ExpiredArtifact identifies a completed job whose artifact has outlived the
// retention window.
type ExpiredArtifact struct {
	JobID        uuid.UUID
	ArtifactPath string
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)

	CreateJob(ctx context.Context, job *models.ReportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ReportJob, error)
	ListJobs(ctx context.Context, limit int) ([]*models.ReportJob, error)

	// ClaimNextPending atomically claims the oldest pending job (created_at
	// ascending, id as tie-break) and transitions it to processing. Safe
	// under concurrent workers: exactly one caller wins a given job. Returns
	// found=false when no pending job exists.
	ClaimNextPending(ctx context.Context) (*models.ReportJob, bool, error)

	// MarkCompleted transitions processing -> completed and records the
	// artifact path. Returns ErrInvalidTransition if the job is not
	// currently processing.
	MarkCompleted(ctx context.Context, id uuid.UUID, artifactPath string) error

	// MarkFailed transitions processing -> failed and records the
	// user-facing error message. Returns ErrInvalidTransition if the job is
	// not currently processing.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	// ListExpiredCompleted returns completed jobs with a non-null artifact
	// path whose completed_at is strictly before olderThan.
	ListExpiredCompleted(ctx context.Context, olderThan time.Time) ([]ExpiredArtifact, error)

	// ClearArtifactPath nulls the artifact path without touching status.
	ClearArtifactPath(ctx context.Context, id uuid.UUID) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}
