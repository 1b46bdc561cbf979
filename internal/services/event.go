package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// MaxIngestBatch caps one SDK flush. Bigger batches are rejected whole so
// the SDK splits them instead of silently losing the tail.
const MaxIngestBatch = 500

// IngestEvent is one event as the SDK sends it.
type IngestEvent struct {
	ClientEventID string          `json:"client_event_id"`
	Kind          string          `json:"kind"`
	Source        string          `json:"source,omitempty"`
	SessionID     uuid.UUID       `json:"session_id,omitempty"`
	Value         *float64        `json:"value,omitempty"`
	DurationMS    *float64        `json:"duration_ms,omitempty"`
	OK            *bool           `json:"ok,omitempty"`
	Bits          int64           `json:"bits,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at,omitempty"`
	Props         json.RawMessage `json:"props,omitempty"`
}

// IngestResult reports what happened to one batch.
type IngestResult struct {
	Accepted int64 `json:"accepted"`
	// Deduped counts events whose client_event_id was already stored.
	Deduped int `json:"deduped"`
	// Dropped counts events with unknown kinds.
	Dropped int `json:"dropped"`
}

type EventService interface {
	Ingest(ctx context.Context, projectID uuid.UUID, batch []IngestEvent) (*IngestResult, error)
	ListEvents(ctx context.Context, projectID uuid.UUID, from, to time.Time, kinds []string, limit int) ([]*types.Event, error)
	Kinds(ctx context.Context, projectID uuid.UUID) ([]string, error)
}

type eventService struct {
	db      *gorm.DB
	log     *logger.Logger
	events  repos.EventRepo
	jobRuns repos.JobRunRepo
}

func NewEventService(db *gorm.DB, baseLog *logger.Logger, events repos.EventRepo, jobRuns repos.JobRunRepo) EventService {
	return &eventService{
		db:      db,
		log:     baseLog.With("service", "EventService"),
		events:  events,
		jobRuns: jobRuns,
	}
}

func (s *eventService) Ingest(ctx context.Context, projectID uuid.UUID, batch []IngestEvent) (*IngestResult, error) {
	const op = "EventService.Ingest"
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	if len(batch) == 0 {
		return &IngestResult{}, nil
	}
	if len(batch) > MaxIngestBatch {
		return nil, types.NewError(types.CodeValidation, op,
			fmt.Sprintf("batch of %d exceeds the limit of %d", len(batch), MaxIngestBatch), nil)
	}

	now := time.Now().UTC()
	res := &IngestResult{}
	rows := make([]*types.Event, 0, len(batch))
	for _, in := range batch {
		if !types.KnownEventKinds[in.Kind] {
			res.Dropped++
			continue
		}
		row := &types.Event{
			ID:            uuid.New(),
			ProjectID:     projectID,
			ClientEventID: in.ClientEventID,
			Kind:          in.Kind,
			Source:        in.Source,
			SessionID:     in.SessionID,
			Value:         in.Value,
			DurationMS:    in.DurationMS,
			OK:            in.OK,
			Bits:          in.Bits,
			OccurredAt:    in.OccurredAt.UTC(),
			Props:         datatypes.JSON(in.Props),
		}
		if row.ClientEventID == "" {
			row.ClientEventID = uuid.New().String()
		}
		// Client clocks drift; events from the future would sit in a day
		// no rollup recomputes yet.
		if row.OccurredAt.IsZero() || row.OccurredAt.After(now) {
			row.OccurredAt = now
		}
		if len(row.Props) == 0 {
			row.Props = datatypes.JSON([]byte("{}"))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return res, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.events.InsertBatch(ctx, tx, rows)
		if err != nil {
			return err
		}
		res.Accepted = inserted
		res.Deduped = len(rows) - int(inserted)
		return s.enqueueRollups(ctx, tx, projectID, rows)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("ingested batch",
		"project_id", projectID,
		"accepted", res.Accepted,
		"deduped", res.Deduped,
		"dropped", res.Dropped)
	return res, nil
}

// enqueueRollups queues one rollup.day job per distinct day the batch
// touched, skipping days that already have a runnable job.
func (s *eventService) enqueueRollups(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, rows []*types.Event) error {
	days := map[string]bool{}
	for _, row := range rows {
		days[row.OccurredAt.UTC().Format(types.DayKeyLayout)] = true
	}
	var jobs []*types.JobRun
	for day := range days {
		exists, err := s.jobRuns.ExistsRunnable(ctx, tx, &projectID, types.JobTypeRollupDay, day)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		payload, err := json.Marshal(types.RollupDayPayload{Day: day})
		if err != nil {
			return err
		}
		pid := projectID
		jobs = append(jobs, &types.JobRun{
			ProjectID: &pid,
			JobType:   types.JobTypeRollupDay,
			Payload:   datatypes.JSON(payload),
		})
	}
	if len(jobs) == 0 {
		return nil
	}
	_, err := s.jobRuns.Enqueue(ctx, tx, jobs)
	return err
}

func (s *eventService) ListEvents(ctx context.Context, projectID uuid.UUID, from, to time.Time, kinds []string, limit int) ([]*types.Event, error) {
	const op = "EventService.ListEvents"
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	if !to.After(from) {
		return nil, types.NewError(types.CodeValidation, op, "window end must be after start", nil)
	}
	return s.events.ListWindow(ctx, nil, projectID, from, to, kinds, limit)
}

func (s *eventService) Kinds(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, "EventService.Kinds", "missing project id", nil)
	}
	return s.events.DistinctKinds(ctx, nil, projectID)
}
