package app

import (
	"github.com/gin-gonic/gin"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/http"
	httpH "github.com/statline/statline-backend/internal/http/handlers"
	httpMW "github.com/statline/statline-backend/internal/http/middleware"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Project *httpH.ProjectHandler
	Token   *httpH.TokenHandler
	Event   *httpH.EventHandler
	Insight *httpH.InsightHandler
	Report  *httpH.ReportHandler
	Job     *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, env *checks.Env, r Repos, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(env),
		Project: httpH.NewProjectHandler(log, s.Project),
		Token:   httpH.NewTokenHandler(log, s.Auth),
		Event:   httpH.NewEventHandler(log, s.Event),
		Insight: httpH.NewInsightHandler(log, s.Insight),
		Report:  httpH.NewReportHandler(log, s.Report),
		Job:     httpH.NewJobHandler(log, r.JobRun),
	}
}

func wireMiddleware(log *logger.Logger, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, s.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg *config.Config, h Handlers, mw Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		AuthMiddleware: mw.Auth,
		HealthHandler:  h.Health,
		EventHandler:   h.Event,
		InsightHandler: h.Insight,
		ReportHandler:  h.Report,
		ProjectHandler: h.Project,
		TokenHandler:   h.Token,
		JobHandler:     h.Job,
	})
}
