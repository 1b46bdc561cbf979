package app

import (
	"gorm.io/gorm"

	jobH "github.com/statline/statline-backend/internal/jobs/handlers"
	"github.com/statline/statline-backend/internal/jobs/runtime"
	"github.com/statline/statline-backend/internal/jobs/scheduler"
	"github.com/statline/statline-backend/internal/jobs/worker"

	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/platform/logger"
)

func wireJobs(db *gorm.DB, log *logger.Logger, cfg *config.Config, r Repos, s Services) (*worker.Worker, *scheduler.Scheduler) {
	log.Info("Wiring jobs...")

	registry := runtime.NewRegistry()
	registry.MustRegister(jobH.NewRollupDay(s.Insight))
	registry.MustRegister(jobH.NewReportWarm(s.Report))

	wrk := worker.New(db, log, r.JobRun, registry, worker.Options{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		RetryDelay:   cfg.Worker.RetryDelay,
		StaleAfter:   cfg.Worker.StaleAfter,
	})
	sched := scheduler.New(log, r.Project, r.JobRun, scheduler.Options{
		CronSpec:    cfg.Rollup.CronSpec,
		WarmReports: cfg.Rollup.WarmReports,
		Retention:   cfg.Worker.Retention,
	})
	return wrk, sched
}
