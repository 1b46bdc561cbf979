package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/jobs/runtime"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// queueRepo hands out a fixed set of jobs and records how each one ended.
type queueRepo struct {
	mu        sync.Mutex
	pending   []*types.JobRun
	succeeded map[uuid.UUID]datatypes.JSON
	failed    map[uuid.UUID]string
	finished  chan uuid.UUID
}

func newQueueRepo(jobs ...*types.JobRun) *queueRepo {
	return &queueRepo{
		pending:   jobs,
		succeeded: map[uuid.UUID]datatypes.JSON{},
		failed:    map[uuid.UUID]string{},
		finished:  make(chan uuid.UUID, 16),
	}
}

func (q *queueRepo) Enqueue(_ context.Context, _ *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	return jobs, nil
}
func (q *queueRepo) GetByIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.JobRun, error) {
	return nil, nil
}
func (q *queueRepo) ClaimNextRunnable(_ context.Context, _ *gorm.DB, _, _ time.Duration) (*types.JobRun, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	job.Status = types.JobStatusRunning
	job.Attempts++
	return job, nil
}
func (q *queueRepo) Heartbeat(_ context.Context, _ *gorm.DB, _ uuid.UUID) error { return nil }
func (q *queueRepo) MarkSucceeded(_ context.Context, _ *gorm.DB, id uuid.UUID, result datatypes.JSON) (bool, error) {
	q.mu.Lock()
	q.succeeded[id] = result
	q.mu.Unlock()
	q.finished <- id
	return true, nil
}
func (q *queueRepo) MarkFailed(_ context.Context, _ *gorm.DB, id uuid.UUID, errMsg string) (bool, error) {
	q.mu.Lock()
	q.failed[id] = errMsg
	q.mu.Unlock()
	q.finished <- id
	return true, nil
}
func (q *queueRepo) ExistsRunnable(_ context.Context, _ *gorm.DB, _ *uuid.UUID, _, _ string) (bool, error) {
	return false, nil
}
func (q *queueRepo) CountByStatus(_ context.Context, _ *gorm.DB) (map[string]int64, error) {
	return nil, nil
}
func (q *queueRepo) PurgeFinished(_ context.Context, _ *gorm.DB, _ time.Duration) (int64, error) {
	return 0, nil
}

type scriptedHandler struct {
	jobType string
	runErr  error
	panics  bool
	runs    int32
}

func (h *scriptedHandler) Type() string { return h.jobType }

func (h *scriptedHandler) Run(jc *runtime.Context) error {
	atomic.AddInt32(&h.runs, 1)
	if h.panics {
		panic("handler exploded")
	}
	if h.runErr != nil {
		return h.runErr
	}
	jc.Succeed(map[string]int{"ok": 1})
	return nil
}

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func queuedJob(jobType string) *types.JobRun {
	return &types.JobRun{ID: uuid.New(), JobType: jobType, Status: types.JobStatusQueued, MaxAttempts: 3}
}

func runUntilFinished(t *testing.T, w *Worker, repo *queueRepo, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < want; i++ {
		select {
		case <-repo.finished:
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatalf("timed out waiting for job %d of %d", i+1, want)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWorkerRunsClaimedJobs(t *testing.T) {
	first := queuedJob(types.JobTypeRollupDay)
	second := queuedJob(types.JobTypeRollupDay)
	repo := newQueueRepo(first, second)

	h := &scriptedHandler{jobType: types.JobTypeRollupDay}
	registry := runtime.NewRegistry()
	registry.MustRegister(h)

	w := New(nil, testLog(t), repo, registry, Options{Concurrency: 2, PollInterval: 5 * time.Millisecond})
	runUntilFinished(t, w, repo, 2)

	if got := atomic.LoadInt32(&h.runs); got != 2 {
		t.Fatalf("handler runs want=2 got=%d", got)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.succeeded) != 2 {
		t.Fatalf("succeeded want=2 got=%d (failed=%v)", len(repo.succeeded), repo.failed)
	}
	if _, ok := repo.succeeded[first.ID]; !ok {
		t.Fatalf("first job not marked succeeded")
	}
	if _, ok := repo.succeeded[second.ID]; !ok {
		t.Fatalf("second job not marked succeeded")
	}
}

func TestWorkerFailsJobsWithoutHandler(t *testing.T) {
	orphan := queuedJob("no.such.type")
	repo := newQueueRepo(orphan)

	w := New(nil, testLog(t), repo, runtime.NewRegistry(), Options{Concurrency: 1, PollInterval: 5 * time.Millisecond})
	runUntilFinished(t, w, repo, 1)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	msg, ok := repo.failed[orphan.ID]
	if !ok {
		t.Fatalf("orphan job not marked failed")
	}
	if !strings.Contains(msg, "no handler registered") {
		t.Fatalf("failure message %q", msg)
	}
}

func TestWorkerRecordsHandlerErrors(t *testing.T) {
	job := queuedJob(types.JobTypeReportWarm)
	repo := newQueueRepo(job)

	h := &scriptedHandler{jobType: types.JobTypeReportWarm, runErr: errors.New("cache unavailable")}
	registry := runtime.NewRegistry()
	registry.MustRegister(h)

	w := New(nil, testLog(t), repo, registry, Options{Concurrency: 1, PollInterval: 5 * time.Millisecond})
	runUntilFinished(t, w, repo, 1)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.failed[job.ID] != "cache unavailable" {
		t.Fatalf("failure message %q", repo.failed[job.ID])
	}
}

func TestWorkerSurvivesHandlerPanics(t *testing.T) {
	job := queuedJob(types.JobTypeRollupDay)
	repo := newQueueRepo(job)

	h := &scriptedHandler{jobType: types.JobTypeRollupDay, panics: true}
	registry := runtime.NewRegistry()
	registry.MustRegister(h)

	w := New(nil, testLog(t), repo, registry, Options{Concurrency: 1, PollInterval: 5 * time.Millisecond})
	runUntilFinished(t, w, repo, 1)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	msg := repo.failed[job.ID]
	if !strings.Contains(msg, "panic") || !strings.Contains(msg, "handler exploded") {
		t.Fatalf("failure message %q", msg)
	}
}

func TestOptionsNormalization(t *testing.T) {
	got := Options{}.normalized()
	if got.Concurrency != 1 || got.PollInterval != 2*time.Second || got.RetryDelay != 30*time.Second || got.StaleAfter != 5*time.Minute {
		t.Fatalf("normalized %+v", got)
	}

	kept := Options{Concurrency: 8, PollInterval: time.Second, RetryDelay: time.Minute, StaleAfter: 10 * time.Minute}.normalized()
	if kept != (Options{Concurrency: 8, PollInterval: time.Second, RetryDelay: time.Minute, StaleAfter: 10 * time.Minute}) {
		t.Fatalf("normalized clobbered explicit options: %+v", kept)
	}
}
