package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/internal/report"
	"github.com/sitebrief/sitebrief/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClaimStore struct {
	queue []*models.ReportJob
	err   error

	claims int
}

func (f *fakeClaimStore) ClaimNextPending(_ context.Context) (*models.ReportJob, bool, error) {
	f.claims++
	if f.err != nil {
		return nil, false, f.err
	}
	if len(f.queue) == 0 {
		return nil, false, nil
	}
	job := f.queue[0]
	f.queue = f.queue[1:]
	job.Status = models.JobStatusProcessing
	return job, true, nil
}

type fakeRunner struct {
	err  error
	runs []uuid.UUID
}

func (f *fakeRunner) Run(_ context.Context, job *models.ReportJob, _ report.ProgressFunc) error {
	f.runs = append(f.runs, job.ID)
	return f.err
}

type fakeStatusCache struct {
	statuses map[uuid.UUID][]string
	err      error
}

func (f *fakeStatusCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}
func (f *fakeStatusCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}
func (f *fakeStatusCache) Delete(_ context.Context, _ string) error { return nil }
func (f *fakeStatusCache) Ping(_ context.Context) error             { return nil }

func (f *fakeStatusCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if f.statuses == nil {
		f.statuses = map[uuid.UUID][]string{}
	}
	f.statuses[jobID] = append(f.statuses[jobID], status)
	return nil
}

func (f *fakeStatusCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	hist, ok := f.statuses[jobID]
	if !ok || len(hist) == 0 {
		return "", false, nil
	}
	return hist[len(hist)-1], true, nil
}

func (f *fakeStatusCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

func pendingJob() *models.ReportJob {
	return &models.ReportJob{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Status:    models.JobStatusPending,
	}
}

func TestRunOnceProcessesOneJob(t *testing.T) {
	st := &fakeClaimStore{queue: []*models.ReportJob{pendingJob(), pendingJob()}}
	runner := &fakeRunner{}
	c := &fakeStatusCache{}

	s := New(st, runner, NewSweeper(&fakeSweepStore{}, &fakeArtifactStore{}, time.Hour), c, time.Second, time.Hour)

	s.RunOnce(context.Background())

	require.Len(t, runner.runs, 1)
	assert.Len(t, st.queue, 1)
}

func TestRunOnceNoPendingJobs(t *testing.T) {
	st := &fakeClaimStore{}
	runner := &fakeRunner{}

	s := New(st, runner, nil, nil, time.Second, time.Hour)

	s.RunOnce(context.Background())

	assert.Empty(t, runner.runs)
	assert.Equal(t, 1, st.claims)
}

func TestRunOnceSurvivesRunnerError(t *testing.T) {
	st := &fakeClaimStore{queue: []*models.ReportJob{pendingJob(), pendingJob()}}
	runner := &fakeRunner{err: errors.New("pipeline blew up")}

	s := New(st, runner, nil, nil, time.Second, time.Hour)

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	// Both jobs were attempted despite the first failing.
	assert.Len(t, runner.runs, 2)
}

func TestRunOnceSurvivesClaimError(t *testing.T) {
	st := &fakeClaimStore{err: errors.New("connection refused")}
	runner := &fakeRunner{}

	s := New(st, runner, nil, nil, time.Second, time.Hour)

	s.RunOnce(context.Background())

	assert.Empty(t, runner.runs)
}

func TestRunOnceMirrorsStatusToCache(t *testing.T) {
	job := pendingJob()
	st := &fakeClaimStore{queue: []*models.ReportJob{job}}
	c := &fakeStatusCache{}

	s := New(st, &fakeRunner{}, nil, c, time.Second, time.Hour)
	s.RunOnce(context.Background())

	assert.Equal(t, []string{models.JobStatusProcessing, models.JobStatusCompleted}, c.statuses[job.ID])
}

func TestRunOnceMirrorsFailedStatus(t *testing.T) {
	job := pendingJob()
	st := &fakeClaimStore{queue: []*models.ReportJob{job}}
	c := &fakeStatusCache{}

	s := New(st, &fakeRunner{err: errors.New("boom")}, nil, c, time.Second, time.Hour)
	s.RunOnce(context.Background())

	assert.Equal(t, []string{models.JobStatusProcessing, models.JobStatusFailed}, c.statuses[job.ID])
}

func TestRunOnceCacheFailureIsNonFatal(t *testing.T) {
	job := pendingJob()
	st := &fakeClaimStore{queue: []*models.ReportJob{job}}
	runner := &fakeRunner{}
	c := &fakeStatusCache{err: errors.New("redis down")}

	s := New(st, runner, nil, c, time.Second, time.Hour)
	s.RunOnce(context.Background())

	assert.Len(t, runner.runs, 1)
}

func TestSweepIfDue(t *testing.T) {
	sweepStore := &fakeSweepStore{}
	sweeper := NewSweeper(sweepStore, &fakeArtifactStore{}, time.Hour)

	s := New(&fakeClaimStore{}, &fakeRunner{}, sweeper, nil, time.Second, time.Hour)

	base := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }
	sweeper.now = s.now

	// First call sweeps immediately (lastSweep is zero).
	s.sweepIfDue(context.Background())
	assert.Equal(t, 1, sweepStore.listCalls)

	// Within the interval, no sweep.
	current = base.Add(30 * time.Minute)
	s.sweepIfDue(context.Background())
	assert.Equal(t, 1, sweepStore.listCalls)

	// Past the interval, sweep again.
	current = base.Add(61 * time.Minute)
	s.sweepIfDue(context.Background())
	assert.Equal(t, 2, sweepStore.listCalls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	st := &fakeClaimStore{}
	s := New(st, &fakeRunner{}, NewSweeper(&fakeSweepStore{}, &fakeArtifactStore{}, time.Hour),
		nil, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	assert.GreaterOrEqual(t, st.claims, 1)
}
