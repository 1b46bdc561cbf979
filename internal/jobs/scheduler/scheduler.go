// Package scheduler owns the nightly cron: it finalizes the previous day's
// rollups for every project, schedules cache warms and purges finished job
// rows past retention.
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// tickTimeout bounds one nightly run.
const tickTimeout = 10 * time.Minute

type Options struct {
	CronSpec    string
	WarmReports bool
	Retention   time.Duration
}

type Scheduler struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	jobRuns  repos.JobRunRepo
	cron     *cron.Cron
	opts     Options
}

func New(baseLog *logger.Logger, projects repos.ProjectRepo, jobRuns repos.JobRunRepo, opts Options) *Scheduler {
	if opts.Retention <= 0 {
		opts.Retention = 7 * 24 * time.Hour
	}
	return &Scheduler{
		log:      baseLog.With("component", "Scheduler"),
		projects: projects,
		jobRuns:  jobRuns,
		cron:     cron.New(),
		opts:     opts,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.opts.CronSpec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", "spec", s.opts.CronSpec, "warm_reports", s.opts.WarmReports)
	return nil
}

// Stop halts the cron and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if err := s.EnqueueDaily(ctx); err != nil {
		s.log.Error("nightly enqueue failed", "error", err)
	}
	purged, err := s.jobRuns.PurgeFinished(ctx, s.opts.Retention)
	if err != nil {
		s.log.Error("purge failed", "error", err)
	} else if purged > 0 {
		s.log.Info("purged finished jobs", "count", purged)
	}
}

// EnqueueDaily queues one rollup.day for yesterday per project, plus a
// report.warm when enabled. Days that already have a runnable job are
// skipped; the queue is the dedupe point, not the cron.
func (s *Scheduler) EnqueueDaily(ctx context.Context) error {
	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1).Format(types.DayKeyLayout)
	today := now.Format(types.DayKeyLayout)

	projects, err := s.projects.List(ctx, nil)
	if err != nil {
		return err
	}

	var jobs []*types.JobRun
	for _, project := range projects {
		pid := project.ID

		exists, err := s.jobRuns.ExistsRunnable(ctx, nil, &pid, types.JobTypeRollupDay, yesterday)
		if err != nil {
			return err
		}
		if !exists {
			payload, err := json.Marshal(types.RollupDayPayload{Day: yesterday})
			if err != nil {
				return err
			}
			id := pid
			jobs = append(jobs, &types.JobRun{
				ProjectID: &id,
				JobType:   types.JobTypeRollupDay,
				Payload:   datatypes.JSON(payload),
			})
		}

		if !s.opts.WarmReports {
			continue
		}
		exists, err = s.jobRuns.ExistsRunnable(ctx, nil, &pid, types.JobTypeReportWarm, today)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		payload, err := json.Marshal(types.ReportWarmPayload{Day: today})
		if err != nil {
			return err
		}
		id := pid
		jobs = append(jobs, &types.JobRun{
			ProjectID: &id,
			JobType:   types.JobTypeReportWarm,
			Payload:   datatypes.JSON(payload),
		})
	}

	if len(jobs) == 0 {
		return nil
	}
	if _, err := s.jobRuns.Enqueue(ctx, nil, jobs); err != nil {
		return err
	}
	s.log.Info("enqueued nightly jobs", "count", len(jobs), "projects", len(projects))
	return nil
}
