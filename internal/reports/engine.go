package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/dberr"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/observability"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// Window bounds a report run: [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Result is one computed report.
type Result struct {
	Report     string                   `json:"report"`
	Title      string                   `json:"title"`
	ProjectID  uuid.UUID                `json:"project_id"`
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
	Rows       []map[string]interface{} `json:"rows"`
	Cached     bool                     `json:"cached"`
	ComputedAt time.Time                `json:"computed_at"`
}

// Engine compiles catalog definitions against the event table and caches
// results in Redis when a client and TTL are configured. A nil client just
// computes every time.
type Engine struct {
	db  *gorm.DB
	rdb redis.UniversalClient
	ttl time.Duration
	log *logger.Logger
}

func NewEngine(db *gorm.DB, rdb redis.UniversalClient, ttl time.Duration, baseLog *logger.Logger) *Engine {
	return &Engine{
		db:  db,
		rdb: rdb,
		ttl: ttl,
		log: baseLog.With("service", "ReportEngine"),
	}
}

// Run computes one report over the window, serving from cache when the same
// project/report/window was computed recently.
func (e *Engine) Run(ctx context.Context, projectID uuid.UUID, name string, win Window) (*Result, error) {
	start := time.Now()
	cat, err := Load()
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "reports.Run", err)
	}
	def, ok := cat.Get(name)
	if !ok {
		return nil, types.NewError(types.CodeNotFound, "reports.Run", fmt.Sprintf("unknown report %q", name), nil)
	}
	if !win.To.After(win.From) {
		return nil, types.NewError(types.CodeValidation, "reports.Run", "window end must be after start", nil)
	}

	key := e.cacheKey(projectID, name, win)
	if cached := e.cacheGet(ctx, key); cached != nil {
		cached.Cached = true
		observability.ObserveReportRun(name, true, time.Since(start))
		return cached, nil
	}

	res, err := e.compute(ctx, projectID, def, win)
	if err != nil {
		return nil, err
	}
	e.cacheSet(ctx, key, res)
	observability.ObserveReportRun(name, false, time.Since(start))
	return res, nil
}

func (e *Engine) compute(ctx context.Context, projectID uuid.UUID, def *Definition, win Window) (*Result, error) {
	selectSQL, args, err := CompileSelect(def)
	if err != nil {
		return nil, types.Wrap(types.CodeValidation, "reports.compute", err)
	}

	q := e.db.WithContext(ctx).
		Model(&types.Event{}).
		Select(selectSQL, args...).
		Where("project_id = ? AND occurred_at >= ? AND occurred_at < ?", projectID, win.From, win.To)
	if len(def.Kinds) > 0 {
		q = q.Where("kind IN ?", def.Kinds)
	}
	for _, g := range def.GroupBy {
		q = q.Group(g)
	}
	if len(def.GroupBy) > 0 {
		q = q.Order(strings.Join(def.GroupBy, ", "))
	}

	var rows []map[string]interface{}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, dberr.Map("reports.compute", err)
	}

	return &Result{
		Report:     def.Name,
		Title:      def.Title,
		ProjectID:  projectID,
		From:       win.From,
		To:         win.To,
		Rows:       rows,
		ComputedAt: time.Now().UTC(),
	}, nil
}

func (e *Engine) cacheKey(projectID uuid.UUID, name string, win Window) string {
	return fmt.Sprintf("statline:report:%s:%s:%d:%d", projectID, name, win.From.Unix(), win.To.Unix())
}

func (e *Engine) cacheGet(ctx context.Context, key string) *Result {
	if e.rdb == nil || e.ttl <= 0 {
		return nil
	}
	raw, err := e.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			e.log.Warn("report cache read failed", "key", key, "error", err)
		}
		return nil
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		e.log.Warn("report cache payload corrupt", "key", key, "error", err)
		return nil
	}
	return &res
}

func (e *Engine) cacheSet(ctx context.Context, key string, res *Result) {
	if e.rdb == nil || e.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		e.log.Warn("report cache encode failed", "key", key, "error", err)
		return
	}
	if err := e.rdb.Set(ctx, key, raw, e.ttl).Err(); err != nil {
		e.log.Warn("report cache write failed", "key", key, "error", err)
	}
}
