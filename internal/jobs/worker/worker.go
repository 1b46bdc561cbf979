// Package worker runs the claim loop: a pool of goroutines that pull
// runnable job_run rows and dispatch them to registered handlers.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/jobs/runtime"
	"github.com/statline/statline-backend/internal/observability"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// depthSampleInterval is how often the queue depth gauges refresh.
const depthSampleInterval = 30 * time.Second

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	RetryDelay   time.Duration
	StaleAfter   time.Duration
}

func (o Options) normalized() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 5 * time.Minute
	}
	return o
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	opts     Options
}

func New(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, opts Options) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		opts:     opts.normalized(),
	}
}

// Run blocks until ctx is cancelled and every loop has drained.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("starting worker pool",
		"concurrency", w.opts.Concurrency,
		"poll_interval", w.opts.PollInterval,
		"handlers", w.registry.Types())

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.claimLoop(gctx, workerID)
			return nil
		})
	}
	g.Go(func() error {
		w.depthLoop(gctx)
		return nil
	})
	return g.Wait()
}

func (w *Worker) claimLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain everything runnable before going back to sleep.
			for {
				job, err := w.repo.ClaimNextRunnable(ctx, nil, w.opts.RetryDelay, w.opts.StaleAfter)
				if err != nil {
					w.log.Warn("claim failed", "worker_id", workerID, "error", err)
					break
				}
				if job == nil {
					break
				}
				w.dispatch(ctx, workerID, job)
			}
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, workerID int, job *types.JobRun) {
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.log)
	start := time.Now()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("no handler for job_type", "worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		jc.Fail(fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		observability.ObserveJobRun(job.JobType, types.JobStatusFailed, time.Since(start))
		return
	}

	stopBeat := w.startHeartbeat(ctx, jc)
	defer stopBeat()

	status := types.JobStatusSucceeded
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("job handler panic",
					"worker_id", workerID,
					"job_id", job.ID,
					"job_type", job.JobType,
					"panic", r)
				jc.Fail(fmt.Errorf("panic: %v", r))
				status = types.JobStatusFailed
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			w.log.Warn("job failed",
				"worker_id", workerID,
				"job_id", job.ID,
				"job_type", job.JobType,
				"attempt", job.Attempts,
				"error", runErr)
			jc.Fail(runErr)
			status = types.JobStatusFailed
		}
	}()
	observability.ObserveJobRun(job.JobType, status, time.Since(start))
}

// startHeartbeat keeps the claimed row fresh so other workers do not
// reclaim it as stale mid-run.
func (w *Worker) startHeartbeat(ctx context.Context, jc *runtime.Context) func() {
	interval := w.opts.StaleAfter / 3
	if interval < time.Second {
		interval = time.Second
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := jc.Heartbeat(); err != nil {
					w.log.Warn("heartbeat failed", "job_id", jc.Job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (w *Worker) depthLoop(ctx context.Context) {
	ticker := time.NewTicker(depthSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := w.repo.CountByStatus(ctx, nil)
			if err != nil {
				w.log.Warn("queue depth sample failed", "error", err)
				continue
			}
			for _, status := range []string{types.JobStatusQueued, types.JobStatusRunning, types.JobStatusSucceeded, types.JobStatusFailed} {
				observability.SetQueueDepth(status, counts[status])
			}
		}
	}
}
