package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/statline/statline-backend/internal/http/handlers"
	httpMW "github.com/statline/statline-backend/internal/http/middleware"
	"github.com/statline/statline-backend/internal/observability"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler  *httpH.HealthHandler
	EventHandler   *httpH.EventHandler
	InsightHandler *httpH.InsightHandler
	ReportHandler  *httpH.ReportHandler
	ProjectHandler *httpH.ProjectHandler
	TokenHandler   *httpH.TokenHandler
	JobHandler     *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// The otel span must exist before AttachTraceContext reads its trace ID.
	r.Use(otelgin.Middleware("statline"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics())
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Probes and metrics stay outside /v1 and outside auth.
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Health)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := r.Group("/v1")
	{
		// Ingest (ingest-key auth; the SDK never holds a JWT)
		if cfg.EventHandler != nil && cfg.AuthMiddleware != nil {
			v1.POST("/ingest/:slug/events", cfg.AuthMiddleware.RequireIngestKey(), cfg.EventHandler.Ingest)
		}
	}

	api := v1.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireToken())
		}

		// Project settings
		if cfg.ProjectHandler != nil {
			api.GET("/project", cfg.ProjectHandler.GetCurrent)
			api.PATCH("/project", cfg.ProjectHandler.Update)
			api.POST("/project/rotate-key", cfg.ProjectHandler.RotateKey)
		}

		// API tokens
		if cfg.TokenHandler != nil {
			api.GET("/tokens", cfg.TokenHandler.List)
			api.POST("/tokens", cfg.TokenHandler.Mint)
			api.DELETE("/tokens/:id", cfg.TokenHandler.Revoke)
		}

		// Raw events
		if cfg.EventHandler != nil {
			api.GET("/events", cfg.EventHandler.List)
			api.GET("/events/kinds", cfg.EventHandler.Kinds)
		}

		// Insights
		if cfg.InsightHandler != nil {
			api.GET("/insights/overview", cfg.InsightHandler.Overview)
			api.GET("/insights/sessions", cfg.InsightHandler.SessionDigest)
			api.GET("/insights/rollups", cfg.InsightHandler.RollupWindow)
		}

		// Reports
		if cfg.ReportHandler != nil {
			api.GET("/reports", cfg.ReportHandler.List)
			api.GET("/reports/:name", cfg.ReportHandler.Run)
		}

		// Queue
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/rollups/recompute", cfg.JobHandler.EnqueueRollup)
			api.POST("/reports/warm", cfg.JobHandler.EnqueueWarm)
		}
	}

	return r
}
