package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos"
	"github.com/statline/statline-backend/internal/data/repos/telemetry"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// ProjectOverview is the one-call summary the dashboard landing page shows.
type ProjectOverview struct {
	ProjectID  uuid.UUID           `json:"project_id"`
	From       time.Time           `json:"from"`
	To         time.Time           `json:"to"`
	Kinds      []string            `json:"kinds"`
	ActiveDays int                 `json:"active_days"`
	Outcomes   *repos.OutcomeStats `json:"outcomes,omitempty"`
	// MetricStats regresses metric values against their duration window.
	MetricStats *repos.ValueStats `json:"metric_stats,omitempty"`
}

type InsightService interface {
	Overview(ctx context.Context, projectID uuid.UUID, from, to time.Time) (*ProjectOverview, error)
	SessionDigest(ctx context.Context, projectID uuid.UUID, kind string) (string, error)
	RollupWindow(ctx context.Context, projectID uuid.UUID, fromDay, toDay time.Time, kinds []string) ([]*types.Rollup, error)
	// RecomputeDay rebuilds and stores the rollups for one UTC day. It
	// returns how many kind rows the day produced.
	RecomputeDay(ctx context.Context, projectID uuid.UUID, day time.Time) (int, error)
}

type insightService struct {
	db      *gorm.DB
	log     *logger.Logger
	events  repos.EventRepo
	rollups repos.RollupRepo
}

func NewInsightService(db *gorm.DB, baseLog *logger.Logger, events repos.EventRepo, rollups repos.RollupRepo) InsightService {
	return &insightService{
		db:      db,
		log:     baseLog.With("service", "InsightService"),
		events:  events,
		rollups: rollups,
	}
}

func (s *insightService) Overview(ctx context.Context, projectID uuid.UUID, from, to time.Time) (*ProjectOverview, error) {
	const op = "InsightService.Overview"
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	if !to.After(from) {
		return nil, types.NewError(types.CodeValidation, op, "window end must be after start", nil)
	}

	kinds, err := s.events.DistinctKinds(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	days, err := s.events.DaysWithEvents(ctx, nil, projectID, from, to)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.events.OutcomeStats(ctx, nil, projectID, from, to)
	if err != nil {
		return nil, err
	}
	metricStats, err := s.events.ValueStats(ctx, nil, projectID, types.EventMetric, from, to)
	if err != nil {
		return nil, err
	}

	return &ProjectOverview{
		ProjectID:   projectID,
		From:        from,
		To:          to,
		Kinds:       kinds,
		ActiveDays:  len(days),
		Outcomes:    outcomes,
		MetricStats: metricStats,
	}, nil
}

func (s *insightService) SessionDigest(ctx context.Context, projectID uuid.UUID, kind string) (string, error) {
	const op = "InsightService.SessionDigest"
	if projectID == uuid.Nil {
		return "", types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	if !types.KnownEventKinds[kind] {
		return "", types.NewError(types.CodeValidation, op, "unknown event kind", nil)
	}
	return s.events.SessionDigest(ctx, nil, projectID, kind)
}

func (s *insightService) RollupWindow(ctx context.Context, projectID uuid.UUID, fromDay, toDay time.Time, kinds []string) ([]*types.Rollup, error) {
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, "InsightService.RollupWindow", "missing project id", nil)
	}
	return s.rollups.Window(ctx, nil, projectID, fromDay, toDay, kinds)
}

func (s *insightService) RecomputeDay(ctx context.Context, projectID uuid.UUID, day time.Time) (int, error) {
	const op = "InsightService.RecomputeDay"
	if projectID == uuid.Nil {
		return 0, types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	day = telemetry.DayOf(day)

	var produced int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rollups, err := s.rollups.RecomputeDay(ctx, tx, projectID, day)
		if err != nil {
			return err
		}
		produced = len(rollups)
		if len(rollups) == 0 {
			return nil
		}
		return s.rollups.UpsertMany(ctx, tx, rollups)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("recomputed day", "project_id", projectID, "day", day.Format(types.DayKeyLayout), "kinds", produced)
	return produced, nil
}
