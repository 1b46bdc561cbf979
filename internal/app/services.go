package app

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/reports"
	"github.com/statline/statline-backend/internal/services"
)

type Services struct {
	Auth    services.AuthService
	Project services.ProjectService
	Event   services.EventService
	Insight services.InsightService
	Report  services.ReportService

	// ReportEngine is exposed for the report CLI command, which runs the
	// engine directly instead of going through the HTTP service.
	ReportEngine *reports.Engine
}

func wireServices(db *gorm.DB, rdb redis.UniversalClient, log *logger.Logger, cfg *config.Config, r Repos) Services {
	log.Info("Wiring services...")
	auth := services.NewAuthService(log, r.Project, r.APIToken, cfg.Auth.Secret, cfg.Auth.TokenTTL)
	engine := reports.NewEngine(db, rdb, cfg.Redis.ReportTTL, log)
	return Services{
		Auth:         auth,
		Project:      services.NewProjectService(log, r.Project, auth),
		Event:        services.NewEventService(db, log, r.Event, r.JobRun),
		Insight:      services.NewInsightService(db, log, r.Event, r.Rollup),
		Report:       services.NewReportService(log, engine),
		ReportEngine: engine,
	}
}
