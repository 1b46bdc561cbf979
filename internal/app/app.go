// Package app assembles the statline backend: configuration, database,
// cache, repositories, services, the HTTP surface, and the background job
// plane. Commands in cmd/statline build an App and pick the pieces they
// need.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/data/db"
	"github.com/statline/statline-backend/internal/http"
	"github.com/statline/statline-backend/internal/jobs/scheduler"
	"github.com/statline/statline-backend/internal/jobs/worker"
	"github.com/statline/statline-backend/internal/observability"
	"github.com/statline/statline-backend/internal/platform/envutil"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/platform/redisclient"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	DB       *gorm.DB
	Redis    redis.UniversalClient
	Router   *gin.Engine
	Server   *http.Server
	Repos    Repos
	Services Services
	Handlers Handlers

	// Checks is the environment the system checks inspect. The CLI runs
	// them against this before any command touches real data.
	Checks *checks.Env

	Worker    *worker.Worker
	Scheduler *scheduler.Scheduler

	runCtx       context.Context
	cancel       context.CancelFunc
	workerOn     bool
	workerDone   chan struct{}
	schedOn      bool
	otelShutdown func(context.Context) error
}

func New(version string) (*App, error) {
	mode := envutil.String("APP_MODE", "development")
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	gdb, err := db.Open(cfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	var rdb redis.UniversalClient
	if cfg.CacheEnabled() {
		rdb, err = redisclient.Open(cfg, log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("open redis: %w", err)
		}
	}

	otelShutdown := observability.InitOTel(context.Background(), log, cfg, version)

	reposet := wireRepos(gdb, log)
	serviceset := wireServices(gdb, rdb, log, cfg, reposet)

	env := &checks.Env{Cfg: cfg, DB: gdb, Redis: rdb, Log: log}

	handlerset := wireHandlers(log, env, reposet, serviceset)
	mw := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, handlerset, mw)
	srv := http.NewServer(cfg.HTTP.Addr, router, log)

	wrk, sched := wireJobs(gdb, log, cfg, reposet, serviceset)

	runCtx, cancel := context.WithCancel(context.Background())

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           gdb,
		Redis:        rdb,
		Router:       router,
		Server:       srv,
		Repos:        reposet,
		Services:     serviceset,
		Handlers:     handlerset,
		Checks:       env,
		Worker:       wrk,
		Scheduler:    sched,
		runCtx:       runCtx,
		cancel:       cancel,
		otelShutdown: otelShutdown,
	}, nil
}

// StartWorker launches the claim-and-execute pool. The pool stops when the
// app closes.
func (a *App) StartWorker() {
	if a == nil || a.Worker == nil || a.workerOn {
		return
	}
	a.workerOn = true
	a.workerDone = make(chan struct{})
	go func() {
		defer close(a.workerDone)
		if err := a.Worker.Run(a.runCtx); err != nil {
			a.Log.Error("worker stopped", "error", err)
		}
	}()
}

// StartScheduler starts the nightly cron that fans out rollup and
// report-warming jobs.
func (a *App) StartScheduler() error {
	if a == nil || a.Scheduler == nil || a.schedOn {
		return nil
	}
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.schedOn = true
	return nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()
	a.Log.Info("http server listening", "addr", a.Cfg.HTTP.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return a.Server.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.schedOn {
		a.Scheduler.Stop()
		a.schedOn = false
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	// Let in-flight jobs finish before the DB goes away.
	if a.workerDone != nil {
		select {
		case <-a.workerDone:
		case <-time.After(10 * time.Second):
			a.Log.Warn("worker did not drain in time")
		}
		a.workerDone = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
