package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitebrief/sitebrief/internal/store"
	"github.com/sitebrief/sitebrief/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sitebrief_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func createTestProject(t *testing.T, s store.Store) *models.Project {
	t.Helper()
	tid := "ty-" + uuid.NewString()[:8]
	p := &models.Project{
		ID:          uuid.New(),
		OrgID:       uuid.New(),
		Name:        "Harbor Bridge Retrofit",
		TrackyardID: &tid,
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func createTestJob(t *testing.T, s store.Store, projectID, orgID uuid.UUID, createdAt time.Time) *models.ReportJob {
	t.Helper()
	job := &models.ReportJob{
		ID:          uuid.New(),
		ProjectID:   projectID,
		OrgID:       orgID,
		PeriodStart: time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC),
		Status:      models.JobStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

// --- Project tests ---

func TestProject_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	require.NotNil(t, got.TrackyardID)
	assert.Equal(t, *p.TrackyardID, *got.TrackyardID)
}

func TestProject_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetProject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Job tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	job := createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.ArtifactPath)
	assert.Nil(t, got.ErrorMessage)
}

func TestJob_ClaimOldestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	base := time.Now().UTC().Add(-time.Hour)
	older := createTestJob(t, s, p.ID, p.OrgID, base)
	newer := createTestJob(t, s, p.ID, p.OrgID, base.Add(time.Minute))

	claimed, found, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, older.ID, claimed.ID)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.NotNil(t, claimed.StartedAt)

	claimed2, found, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, newer.ID, claimed2.ID)

	_, found, err = s.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJob_ClaimConcurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())

	// Two workers race for one pending job; exactly one wins.
	var wg sync.WaitGroup
	wins := make(chan uuid.UUID, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, found, err := s.ClaimNextPending(ctx)
			assert.NoError(t, err)
			if found {
				wins <- job.ID
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []uuid.UUID
	for id := range wins {
		winners = append(winners, id)
	}
	assert.Len(t, winners, 1)
}

func TestJob_MarkCompleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())
	claimed, found, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.True(t, found)

	err = s.MarkCompleted(ctx, claimed.ID, "/artifacts/reports/x.html")
	require.NoError(t, err)

	got, err := s.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.ArtifactPath)
	assert.Equal(t, "/artifacts/reports/x.html", *got.ArtifactPath)
	assert.NotNil(t, got.CompletedAt)
}

func TestJob_MarkFailed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())
	claimed, _, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)

	err = s.MarkFailed(ctx, claimed.ID, "at least 4 daily log notes are required for a report; the period has 1")
	require.NoError(t, err)

	got, err := s.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "daily log notes")
}

func TestJob_TerminalStatusesAreFinal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	pending := createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())

	// Pending jobs cannot be completed or failed directly.
	assert.ErrorIs(t, s.MarkCompleted(ctx, pending.ID, "/a.html"), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkFailed(ctx, pending.ID, "nope"), store.ErrInvalidTransition)

	claimed, _, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(ctx, claimed.ID, "/a.html"))

	// Completed jobs cannot transition again.
	assert.ErrorIs(t, s.MarkFailed(ctx, claimed.ID, "nope"), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkCompleted(ctx, claimed.ID, "/b.html"), store.ErrInvalidTransition)
}

func TestJob_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	base := time.Now().UTC().Add(-time.Hour)
	createTestJob(t, s, p.ID, p.OrgID, base)
	newest := createTestJob(t, s, p.ID, p.OrgID, base.Add(time.Minute))

	jobs, err := s.ListJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, newest.ID, jobs[0].ID)
}

func TestJob_ListHonorsLargeLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 110; i++ {
		createTestJob(t, s, p.ID, p.OrgID, base.Add(time.Duration(i)*time.Minute))
	}

	// A limit between 100 and the cap must not be silently clamped lower.
	jobs, err := s.ListJobs(ctx, 150)
	require.NoError(t, err)
	assert.Len(t, jobs, 110)

	jobs, err = s.ListJobs(ctx, store.MaxListLimit+1)
	require.NoError(t, err)
	assert.Len(t, jobs, 110)
}

// --- Retention tests ---

func TestListExpiredCompleted_StrictBoundary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)

	complete := func() *models.ReportJob {
		createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())
		claimed, _, err := s.ClaimNextPending(ctx)
		require.NoError(t, err)
		require.NoError(t, s.MarkCompleted(ctx, claimed.ID, "/artifacts/"+claimed.ID.String()+".html"))
		return claimed
	}

	atCutoff := complete()
	justOlder := complete()

	cutoff := time.Now().UTC().Truncate(time.Microsecond)
	_, err := pool.Exec(ctx, `UPDATE report_jobs SET completed_at = $1 WHERE id = $2`, cutoff, atCutoff.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE report_jobs SET completed_at = $1 WHERE id = $2`,
		cutoff.Add(-time.Microsecond), justOlder.ID)
	require.NoError(t, err)

	expired, err := s.ListExpiredCompleted(ctx, cutoff)
	require.NoError(t, err)

	// completed_at == cutoff is retained; strictly older is returned.
	require.Len(t, expired, 1)
	assert.Equal(t, justOlder.ID, expired[0].JobID)
	assert.NotEmpty(t, expired[0].ArtifactPath)
}

func TestClearArtifactPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	p := createTestProject(t, s)
	createTestJob(t, s, p.ID, p.OrgID, time.Now().UTC())
	claimed, _, err := s.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(ctx, claimed.ID, "/artifacts/x.html"))

	require.NoError(t, s.ClearArtifactPath(ctx, claimed.ID))

	got, err := s.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ArtifactPath)
	// Status is untouched.
	assert.Equal(t, models.JobStatusCompleted, got.Status)
}

// --- API key tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "ci-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "sb_abcd1",
		Scopes:    []string{"reports:read", "reports:write"},
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "sb_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{"reports:read", "reports:write"}, keys[0].Scopes)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
	keys, err = s.GetAPIKeyByPrefix(ctx, "sb_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}
