package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/statline/statline-backend/internal/data/dberr"
	"github.com/statline/statline-backend/internal/data/pgagg"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// ValueStats summarizes the (value, duration_ms) relationship for one event
// kind. Pointer fields are nil when PostgreSQL had fewer than two complete
// pairs to work with.
type ValueStats struct {
	N         int64    `gorm:"column:n" json:"n"`
	Corr      *float64 `gorm:"column:corr" json:"corr,omitempty"`
	Slope     *float64 `gorm:"column:slope" json:"slope,omitempty"`
	Intercept *float64 `gorm:"column:intercept" json:"intercept,omitempty"`
	R2        *float64 `gorm:"column:r2" json:"r2,omitempty"`
	AvgX      *float64 `gorm:"column:avg_x" json:"avg_x,omitempty"`
	AvgY      *float64 `gorm:"column:avg_y" json:"avg_y,omitempty"`
}

// OutcomeStats folds per-event outcomes and capability bitmaps.
type OutcomeStats struct {
	OKAll   *bool  `gorm:"column:ok_all" json:"ok_all,omitempty"`
	OKAny   *bool  `gorm:"column:ok_any" json:"ok_any,omitempty"`
	BitsAll *int64 `gorm:"column:bits_all" json:"bits_all,omitempty"`
	BitsAny *int64 `gorm:"column:bits_any" json:"bits_any,omitempty"`
	BitsMix *int64 `gorm:"column:bits_mix" json:"bits_mix,omitempty"`
}

type EventRepo interface {
	InsertBatch(ctx context.Context, tx *gorm.DB, events []*types.Event) (int64, error)
	ListWindow(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, from, to time.Time, kinds []string, limit int) ([]*types.Event, error)
	DistinctKinds(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]string, error)
	SessionDigest(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, kind string) (string, error)
	ValueStats(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, kind string, from, to time.Time) (*ValueStats, error)
	OutcomeStats(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, from, to time.Time) (*OutcomeStats, error)
	DaysWithEvents(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, from, to time.Time) ([]time.Time, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	repoLog := baseLog.With("repo", "EventRepo")
	return &eventRepo{db: db, log: repoLog}
}

func (er *eventRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return er.db
}

// InsertBatch writes events, silently skipping rows whose
// (project_id, client_event_id) already landed. Returns the number actually
// inserted so callers can report dedupe counts.
func (er *eventRepo) InsertBatch(ctx context.Context, tx *gorm.DB, events []*types.Event) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	res := er.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "client_event_id"}},
			DoNothing: true,
		}).
		Create(&events)
	if res.Error != nil {
		return 0, dberr.Map("event.InsertBatch", res.Error)
	}
	return res.RowsAffected, nil
}

func (er *eventRepo) ListWindow(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, from, to time.Time, kinds []string, limit int) ([]*types.Event, error) {
	var results []*types.Event
	q := er.conn(tx).WithContext(ctx).
		Where("project_id = ? AND occurred_at >= ? AND occurred_at < ?", projectID, from, to)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("occurred_at ASC").Find(&results).Error; err != nil {
		return nil, dberr.Map("event.ListWindow", err)
	}
	return results, nil
}

// DistinctKinds folds every kind the project ever emitted into one sorted
// array, so the result is a single row regardless of cardinality.
func (er *eventRepo) DistinctKinds(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]string, error) {
	var row struct {
		Kinds pq.StringArray `gorm:"column:kinds;type:text[]"`
	}
	agg := pgagg.ArrayAgg("kind").
		Distinct().
		OrderBy(pgagg.OrderSpec{Column: "kind"}).
		Default(gorm.Expr("'{}'::text[]"))
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Event{}).
		Select("? AS kinds", agg).
		Where("project_id = ?", projectID).
		Scan(&row).Error; err != nil {
		return nil, dberr.Map("event.DistinctKinds", err)
	}
	return []string(row.Kinds), nil
}

// SessionDigest joins the distinct session IDs for one kind into a single
// comma-separated string.
func (er *eventRepo) SessionDigest(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, kind string) (string, error) {
	var row struct {
		Digest *string `gorm:"column:digest"`
	}
	agg := pgagg.StringAgg(gorm.Expr("session_id::text"), ", ").Distinct()
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Event{}).
		Select("? AS digest", agg).
		Where("project_id = ? AND kind = ?", projectID, kind).
		Scan(&row).Error; err != nil {
		return "", dberr.Map("event.SessionDigest", err)
	}
	if row.Digest == nil {
		return "", nil
	}
	return *row.Digest, nil
}

// ValueStats runs the linear-regression family over (value, duration_ms)
// pairs in one statement. REGR_COUNT needs no default; the rest stay NULL
// for degenerate groups and scan into pointers.
func (er *eventRepo) ValueStats(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, kind string, from, to time.Time) (*ValueStats, error) {
	var row ValueStats
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Event{}).
		Select("? AS n, ? AS corr, ? AS slope, ? AS intercept, ? AS r2, ? AS avg_x, ? AS avg_y",
			pgagg.RegrCount("value", "duration_ms"),
			pgagg.Corr("value", "duration_ms"),
			pgagg.RegrSlope("value", "duration_ms"),
			pgagg.RegrIntercept("value", "duration_ms"),
			pgagg.RegrR2("value", "duration_ms"),
			pgagg.RegrAvgX("value", "duration_ms"),
			pgagg.RegrAvgY("value", "duration_ms"),
		).
		Where("project_id = ? AND kind = ? AND occurred_at >= ? AND occurred_at < ?", projectID, kind, from, to).
		Scan(&row).Error; err != nil {
		return nil, dberr.Map("event.ValueStats", err)
	}
	return &row, nil
}

// OutcomeStats folds flag_check outcomes and the capability bitmaps over a
// window. The bool folds only see flag_check rows via FILTER; the bit folds
// run across all kinds.
func (er *eventRepo) OutcomeStats(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, from, to time.Time) (*OutcomeStats, error) {
	var row OutcomeStats
	flagOnly := clause.Eq{Column: clause.Column{Name: "kind"}, Value: types.EventFlagCheck}
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Event{}).
		Select("? AS ok_all, ? AS ok_any, ? AS bits_all, ? AS bits_any, ? AS bits_mix",
			pgagg.BoolAnd("ok").Filter(flagOnly),
			pgagg.BoolOr("ok").Filter(flagOnly),
			pgagg.BitAnd("bits"),
			pgagg.BitOr("bits"),
			pgagg.BitXor("bits"),
		).
		Where("project_id = ? AND occurred_at >= ? AND occurred_at < ?", projectID, from, to).
		Scan(&row).Error; err != nil {
		return nil, dberr.Map("event.OutcomeStats", err)
	}
	return &row, nil
}

// DaysWithEvents lists the distinct UTC days with at least one event, for
// rollup backfills.
func (er *eventRepo) DaysWithEvents(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	var days []time.Time
	if err := er.conn(tx).WithContext(ctx).
		Model(&types.Event{}).
		Select("DISTINCT date_trunc('day', occurred_at) AS day").
		Where("project_id = ? AND occurred_at >= ? AND occurred_at < ?", projectID, from, to).
		Order("day ASC").
		Pluck("day", &days).Error; err != nil {
		return nil, dberr.Map("event.DaysWithEvents", err)
	}
	return days, nil
}
