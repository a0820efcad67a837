package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, org_id, name, trackyard_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OrgID, p.Name, p.TrackyardID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, org_id, name, trackyard_id, created_at, updated_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OrgID, &p.Name, &p.TrackyardID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// --- Report jobs ---

const jobColumns = `id, project_id, org_id, period_start, period_end, status,
	error_message, artifact_path, started_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.ReportJob, error) {
	var j models.ReportJob
	err := row.Scan(&j.ID, &j.ProjectID, &j.OrgID, &j.PeriodStart, &j.PeriodEnd,
		&j.Status, &j.ErrorMessage, &j.ArtifactPath, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.ReportJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
		job.UpdatedAt = job.CreatedAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_jobs (id, project_id, org_id, period_start, period_end, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.ProjectID, job.OrgID, job.PeriodStart, job.PeriodEnd,
		job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ReportJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]*models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM report_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.ReportJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimNextPending claims the oldest pending job in a single statement. The
// FOR UPDATE SKIP LOCKED subquery makes concurrent claims race-free: a row
// being claimed by one worker is invisible to the others, so losers either
// see no row or the next-oldest pending one.
func (s *PostgresStore) ClaimNextPending(ctx context.Context) (*models.ReportJob, bool, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE report_jobs
		 SET status = $1, started_at = NOW(), updated_at = NOW()
		 WHERE id = (
		     SELECT id FROM report_jobs
		     WHERE status = $2
		     ORDER BY created_at ASC, id ASC
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		models.JobStatusProcessing, models.JobStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claim next pending job: %w", err)
	}
	return j, true, nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id uuid.UUID, artifactPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE report_jobs
		 SET status = $1, artifact_path = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		models.JobStatusCompleted, artifactPath, id, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark job %s completed: %w", id, ErrInvalidTransition)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE report_jobs
		 SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		models.JobStatusFailed, message, id, models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark job %s failed: %w", id, ErrInvalidTransition)
	}
	return nil
}

// ListExpiredCompleted uses a strict < so a job completed exactly at the
// cutoff is retained until the next sweep.
func (s *PostgresStore) ListExpiredCompleted(ctx context.Context, olderThan time.Time) ([]ExpiredArtifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, artifact_path FROM report_jobs
		 WHERE status = $1 AND artifact_path IS NOT NULL AND completed_at < $2
		 ORDER BY completed_at ASC`,
		models.JobStatusCompleted, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list expired completed jobs: %w", err)
	}
	defer rows.Close()

	expired := []ExpiredArtifact{}
	for rows.Next() {
		var e ExpiredArtifact
		if err := rows.Scan(&e.JobID, &e.ArtifactPath); err != nil {
			return nil, fmt.Errorf("scan expired job: %w", err)
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

func (s *PostgresStore) ClearArtifactPath(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE report_jobs SET artifact_path = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear artifact path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
		key.UpdatedAt = key.CreatedAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
