package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/statline/statline-backend/internal/data/dberr"
	"github.com/statline/statline-backend/internal/data/pgagg"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type RollupRepo interface {
	UpsertMany(ctx context.Context, tx *gorm.DB, rollups []*types.Rollup) error
	Window(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, fromDay, toDay time.Time, kinds []string) ([]*types.Rollup, error)
	RecomputeDay(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, day time.Time) ([]*types.Rollup, error)
}

type rollupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRollupRepo(db *gorm.DB, baseLog *logger.Logger) RollupRepo {
	repoLog := baseLog.With("repo", "RollupRepo")
	return &rollupRepo{db: db, log: repoLog}
}

func (rr *rollupRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *rollupRepo) UpsertMany(ctx context.Context, tx *gorm.DB, rollups []*types.Rollup) error {
	if len(rollups) == 0 {
		return nil
	}
	if err := rr.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}, {Name: "day"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"count", "sessions",
				"value_sum", "value_avg", "duration_avg",
				"ok_all", "ok_any", "bits_all", "bits_any",
				"updated_at",
			}),
		}).
		Create(&rollups).Error; err != nil {
		return dberr.Map("rollup.UpsertMany", err)
	}
	return nil
}

func (rr *rollupRepo) Window(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, fromDay, toDay time.Time, kinds []string) ([]*types.Rollup, error) {
	var results []*types.Rollup
	q := rr.conn(tx).WithContext(ctx).
		Where("project_id = ? AND day >= ? AND day <= ?", projectID, DayOf(fromDay), DayOf(toDay))
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	if err := q.Order("day ASC, kind ASC").Find(&results).Error; err != nil {
		return nil, dberr.Map("rollup.Window", err)
	}
	return results, nil
}

// rollupRow is the per-kind aggregate the recompute query scans into.
type rollupRow struct {
	Kind        string   `gorm:"column:kind"`
	Count       int64    `gorm:"column:count"`
	Sessions    int64    `gorm:"column:sessions"`
	ValueSum    *float64 `gorm:"column:value_sum"`
	ValueAvg    *float64 `gorm:"column:value_avg"`
	DurationAvg *float64 `gorm:"column:duration_avg"`
	OKAll       *bool    `gorm:"column:ok_all"`
	OKAny       *bool    `gorm:"column:ok_any"`
	BitsAll     *int64   `gorm:"column:bits_all"`
	BitsAny     *int64   `gorm:"column:bits_any"`
}

// RecomputeDay aggregates one project-day from the raw events and returns
// the rows ready for UpsertMany. The whole day recomputes every time;
// partial updates are not worth the bookkeeping at this volume.
func (rr *rollupRepo) RecomputeDay(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, day time.Time) ([]*types.Rollup, error) {
	dayStart := DayOf(day)
	dayEnd := dayStart.Add(24 * time.Hour)

	var rows []rollupRow
	if err := rr.conn(tx).WithContext(ctx).
		Model(&types.Event{}).
		Select("kind, COUNT(*) AS count, COUNT(DISTINCT session_id) AS sessions,"+
			" SUM(value) AS value_sum, AVG(value) AS value_avg, AVG(duration_ms) AS duration_avg,"+
			" ? AS ok_all, ? AS ok_any, ? AS bits_all, ? AS bits_any",
			pgagg.BoolAnd("ok"),
			pgagg.BoolOr("ok"),
			pgagg.BitAnd("bits"),
			pgagg.BitOr("bits"),
		).
		Where("project_id = ? AND occurred_at >= ? AND occurred_at < ?", projectID, dayStart, dayEnd).
		Group("kind").
		Scan(&rows).Error; err != nil {
		return nil, dberr.Map("rollup.RecomputeDay", err)
	}

	now := time.Now().UTC()
	rollups := make([]*types.Rollup, 0, len(rows))
	for _, row := range rows {
		rollups = append(rollups, &types.Rollup{
			ID:          uuid.New(),
			ProjectID:   projectID,
			Day:         dayStart,
			Kind:        row.Kind,
			Count:       row.Count,
			Sessions:    row.Sessions,
			ValueSum:    row.ValueSum,
			ValueAvg:    row.ValueAvg,
			DurationAvg: row.DurationAvg,
			OKAll:       row.OKAll,
			OKAny:       row.OKAny,
			BitsAll:     row.BitsAll,
			BitsAny:     row.BitsAny,
			UpdatedAt:   now,
		})
	}
	return rollups, nil
}

// DayOf truncates t to its UTC date.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
