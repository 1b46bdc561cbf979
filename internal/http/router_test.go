package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/checks"
	_ "github.com/statline/statline-backend/internal/checks/all"
	"github.com/statline/statline-backend/internal/config"
	types "github.com/statline/statline-backend/internal/domain"
	httpH "github.com/statline/statline-backend/internal/http/handlers"
	httpMW "github.com/statline/statline-backend/internal/http/middleware"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/reports"
	"github.com/statline/statline-backend/internal/services"
)

const (
	testToken = "unit-token"
	testSlug  = "demo"
	testKey   = "slk_unit"
)

type routerAuth struct {
	services.AuthService

	projectID uuid.UUID
}

func (a *routerAuth) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString != testToken {
		return ctx, types.NewError(types.CodeUnauthorized, "AuthService.SetContextFromToken", "invalid or expired token", nil)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{ProjectID: a.projectID, TokenID: uuid.New()}), nil
}

func (a *routerAuth) SetContextFromIngestKey(ctx context.Context, slug, key string) (context.Context, error) {
	if slug != testSlug || key != testKey {
		return ctx, types.NewError(types.CodeUnauthorized, "AuthService.SetContextFromIngestKey", "bad ingest key", nil)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{ProjectID: a.projectID}), nil
}

type routerEvents struct {
	services.EventService

	lastBatch []services.IngestEvent
}

func (e *routerEvents) Ingest(_ context.Context, _ uuid.UUID, batch []services.IngestEvent) (*services.IngestResult, error) {
	e.lastBatch = batch
	return &services.IngestResult{Accepted: int64(len(batch))}, nil
}

func (e *routerEvents) Kinds(_ context.Context, _ uuid.UUID) ([]string, error) {
	return []string{types.EventPageView, types.EventMetric}, nil
}

type routerReports struct {
	services.ReportService
}

func (r *routerReports) RunReport(_ context.Context, projectID uuid.UUID, name string, from, to time.Time) (*reports.Result, error) {
	return &reports.Result{
		Report:    name,
		ProjectID: projectID,
		From:      from,
		To:        to,
		Rows:      []map[string]interface{}{},
	}, nil
}

type routerJobRuns struct {
	runnable map[string]bool
	enqueued []*types.JobRun
}

func (j *routerJobRuns) Enqueue(_ context.Context, _ *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	for _, job := range jobs {
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
	}
	j.enqueued = append(j.enqueued, jobs...)
	return jobs, nil
}
func (j *routerJobRuns) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	for _, job := range j.enqueued {
		for _, id := range ids {
			if job.ID == id {
				out = append(out, job)
			}
		}
	}
	return out, nil
}
func (j *routerJobRuns) ClaimNextRunnable(_ context.Context, _ *gorm.DB, _, _ time.Duration) (*types.JobRun, error) {
	return nil, nil
}
func (j *routerJobRuns) Heartbeat(_ context.Context, _ *gorm.DB, _ uuid.UUID) error { return nil }
func (j *routerJobRuns) MarkSucceeded(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ datatypes.JSON) (bool, error) {
	return true, nil
}
func (j *routerJobRuns) MarkFailed(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string) (bool, error) {
	return true, nil
}
func (j *routerJobRuns) ExistsRunnable(_ context.Context, _ *gorm.DB, _ *uuid.UUID, jobType, dayKey string) (bool, error) {
	return j.runnable[jobType+"|"+dayKey], nil
}
func (j *routerJobRuns) CountByStatus(_ context.Context, _ *gorm.DB) (map[string]int64, error) {
	return nil, nil
}
func (j *routerJobRuns) PurgeFinished(_ context.Context, _ *gorm.DB, _ time.Duration) (int64, error) {
	return 0, nil
}

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type testRouter struct {
	engine  *gin.Engine
	jobRuns *routerJobRuns
	events  *routerEvents
	project uuid.UUID
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testLog(t)
	projectID := uuid.New()
	auth := &routerAuth{projectID: projectID}
	events := &routerEvents{}
	jobRuns := &routerJobRuns{runnable: map[string]bool{}}

	env := &checks.Env{Cfg: &config.Config{}, Log: log}

	engine := NewRouter(RouterConfig{
		Log:            log,
		CORSOrigins:    []string{"http://localhost:3000"},
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth),
		HealthHandler:  httpH.NewHealthHandler(env),
		EventHandler:   httpH.NewEventHandler(log, events),
		ReportHandler:  httpH.NewReportHandler(log, &routerReports{}),
		JobHandler:     httpH.NewJobHandler(log, jobRuns),
	})
	return &testRouter{engine: engine, jobRuns: jobRuns, events: events, project: projectID}
}

func (tr *testRouter) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	tr.engine.ServeHTTP(rec, req)
	return rec
}

func TestProbesAndMetricsAreOpen(t *testing.T) {
	tr := newTestRouter(t)

	if rec := tr.do(http.MethodGet, "/healthz", "", false); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec := tr.do(http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "statline_") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestReadyzReportsSeriousFindings(t *testing.T) {
	tr := newTestRouter(t)

	// No database connection is wired, so readiness must fail.
	rec := tr.do(http.MethodGet, "/readyz", "", false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: want=503 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "database.E001") {
		t.Fatalf("readyz body misses the connectivity finding: %s", rec.Body.String())
	}
}

func TestIngestRouteUsesIngestKeyAuth(t *testing.T) {
	tr := newTestRouter(t)
	body := `{"events":[{"kind":"page_view","client_event_id":"a1"}]}`

	// A dashboard JWT does not open the ingest route.
	rec := tr.do(http.MethodPost, "/v1/ingest/"+testSlug+"/events", body, true)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bearer on ingest: want=401 got=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/"+testSlug+"/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Statline-Key", testKey)
	rec = httptest.NewRecorder()
	tr.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(tr.events.lastBatch) != 1 || tr.events.lastBatch[0].Kind != types.EventPageView {
		t.Fatalf("service saw batch %+v", tr.events.lastBatch)
	}
}

func TestDashboardRoutesRequireToken(t *testing.T) {
	tr := newTestRouter(t)

	if rec := tr.do(http.MethodGet, "/v1/events/kinds", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: want=401 got=%d", rec.Code)
	}

	rec := tr.do(http.MethodGet, "/v1/events/kinds", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), types.EventMetric) {
		t.Fatalf("kinds body: %s", rec.Body.String())
	}
}

func TestReportRunRoute(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/v1/reports/flag_health", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("report run: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"report":"flag_health"`) {
		t.Fatalf("report body: %s", rec.Body.String())
	}
}

func TestRecomputeRouteDedupesQueuedDays(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodPost, "/v1/rollups/recompute", `{"day":"2026-03-14"}`, true)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"queued":true`) {
		t.Fatalf("first recompute: %d %s", rec.Code, rec.Body.String())
	}
	if len(tr.jobRuns.enqueued) != 1 || tr.jobRuns.enqueued[0].JobType != types.JobTypeRollupDay {
		t.Fatalf("enqueued %+v", tr.jobRuns.enqueued)
	}

	tr.jobRuns.runnable[types.JobTypeRollupDay+"|2026-03-14"] = true
	rec = tr.do(http.MethodPost, "/v1/rollups/recompute", `{"day":"2026-03-14"}`, true)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"queued":false`) {
		t.Fatalf("duplicate recompute: %d %s", rec.Code, rec.Body.String())
	}
	if len(tr.jobRuns.enqueued) != 1 {
		t.Fatalf("duplicate day was enqueued again")
	}

	if rec := tr.do(http.MethodPost, "/v1/rollups/recompute", `{"day":"last tuesday"}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad day: want=400 got=%d", rec.Code)
	}
}
