package services

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// mockDB backs gorm with sqlmock so services can open transactions without
// a server. Repo calls inside are fakes; only Begin/Commit reach the mock.
func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return gdb, mock
}

// The fakes below hold their state in plain slices and maps; tests drive
// them single-threaded.

type fakeProjectRepo struct {
	projects     []*types.Project
	updateCalls  []map[string]interface{}
	updateTarget uuid.UUID
}

func (f *fakeProjectRepo) Create(_ context.Context, _ *gorm.DB, projects []*types.Project) ([]*types.Project, error) {
	f.projects = append(f.projects, projects...)
	return projects, nil
}

func (f *fakeProjectRepo) GetByIDs(_ context.Context, _ *gorm.DB, projectIDs []uuid.UUID) ([]*types.Project, error) {
	var out []*types.Project
	for _, p := range f.projects {
		for _, id := range projectIDs {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeProjectRepo) GetBySlug(_ context.Context, _ *gorm.DB, slug string) (*types.Project, error) {
	for _, p := range f.projects {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProjectRepo) List(_ context.Context, _ *gorm.DB) ([]*types.Project, error) {
	return f.projects, nil
}

func (f *fakeProjectRepo) UpdateFields(_ context.Context, _ *gorm.DB, projectID uuid.UUID, fields map[string]interface{}) error {
	f.updateTarget = projectID
	f.updateCalls = append(f.updateCalls, fields)
	for _, p := range f.projects {
		if p.ID != projectID {
			continue
		}
		if v, ok := fields["name"].(string); ok {
			p.Name = v
		}
		if v, ok := fields["debug"].(bool); ok {
			p.Debug = v
		}
		if v, ok := fields["ingest_key_hash"].(string); ok {
			p.IngestKeyHash = v
		}
	}
	return nil
}

func (f *fakeProjectRepo) SlugExists(_ context.Context, _ *gorm.DB, slug string) (bool, error) {
	for _, p := range f.projects {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProjectRepo) Delete(_ context.Context, _ *gorm.DB, projectID uuid.UUID) error {
	kept := f.projects[:0]
	for _, p := range f.projects {
		if p.ID != projectID {
			kept = append(kept, p)
		}
	}
	f.projects = kept
	return nil
}

type fakeTokenRepo struct {
	tokens  []*types.APIToken
	touched []uuid.UUID
}

func (f *fakeTokenRepo) Create(_ context.Context, _ *gorm.DB, tokens []*types.APIToken) ([]*types.APIToken, error) {
	f.tokens = append(f.tokens, tokens...)
	return tokens, nil
}

func (f *fakeTokenRepo) GetByIDs(_ context.Context, _ *gorm.DB, tokenIDs []uuid.UUID) ([]*types.APIToken, error) {
	var out []*types.APIToken
	for _, tok := range f.tokens {
		for _, id := range tokenIDs {
			if tok.ID == id {
				out = append(out, tok)
			}
		}
	}
	return out, nil
}

func (f *fakeTokenRepo) ListByProjectIDs(_ context.Context, _ *gorm.DB, projectIDs []uuid.UUID) ([]*types.APIToken, error) {
	var out []*types.APIToken
	for _, tok := range f.tokens {
		for _, id := range projectIDs {
			if tok.ProjectID == id {
				out = append(out, tok)
			}
		}
	}
	return out, nil
}

func (f *fakeTokenRepo) TouchLastUsed(_ context.Context, _ *gorm.DB, tokenID uuid.UUID, at time.Time) error {
	f.touched = append(f.touched, tokenID)
	for _, tok := range f.tokens {
		if tok.ID == tokenID {
			t := at
			tok.LastUsedAt = &t
		}
	}
	return nil
}

func (f *fakeTokenRepo) Delete(_ context.Context, _ *gorm.DB, tokenID uuid.UUID) error {
	kept := f.tokens[:0]
	for _, tok := range f.tokens {
		if tok.ID != tokenID {
			kept = append(kept, tok)
		}
	}
	f.tokens = kept
	return nil
}

type fakeEventRepo struct {
	inserted  []*types.Event
	kinds     []string
	digest    string
	stats     *repos.ValueStats
	outcomes  *repos.OutcomeStats
	eventDays []time.Time
	listed    []*types.Event
}

func (f *fakeEventRepo) InsertBatch(_ context.Context, _ *gorm.DB, events []*types.Event) (int64, error) {
	inserted := int64(0)
	for _, ev := range events {
		dupe := false
		for _, have := range f.inserted {
			if have.ProjectID == ev.ProjectID && have.ClientEventID == ev.ClientEventID {
				dupe = true
				break
			}
		}
		if dupe {
			continue
		}
		f.inserted = append(f.inserted, ev)
		inserted++
	}
	return inserted, nil
}

func (f *fakeEventRepo) ListWindow(_ context.Context, _ *gorm.DB, _ uuid.UUID, _, _ time.Time, _ []string, _ int) ([]*types.Event, error) {
	return f.listed, nil
}

func (f *fakeEventRepo) DistinctKinds(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]string, error) {
	return f.kinds, nil
}

func (f *fakeEventRepo) SessionDigest(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string) (string, error) {
	return f.digest, nil
}

func (f *fakeEventRepo) ValueStats(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string, _, _ time.Time) (*repos.ValueStats, error) {
	return f.stats, nil
}

func (f *fakeEventRepo) OutcomeStats(_ context.Context, _ *gorm.DB, _ uuid.UUID, _, _ time.Time) (*repos.OutcomeStats, error) {
	return f.outcomes, nil
}

func (f *fakeEventRepo) DaysWithEvents(_ context.Context, _ *gorm.DB, _ uuid.UUID, _, _ time.Time) ([]time.Time, error) {
	return f.eventDays, nil
}

type fakeJobRunRepo struct {
	enqueued []*types.JobRun
	// runnable holds "jobType|day" keys ExistsRunnable answers true for.
	runnable map[string]bool
}

func (f *fakeJobRunRepo) Enqueue(_ context.Context, _ *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	f.enqueued = append(f.enqueued, jobs...)
	return jobs, nil
}

func (f *fakeJobRunRepo) GetByIDs(_ context.Context, _ *gorm.DB, _ []uuid.UUID) ([]*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) ClaimNextRunnable(_ context.Context, _ *gorm.DB, _, _ time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) Heartbeat(_ context.Context, _ *gorm.DB, _ uuid.UUID) error { return nil }

func (f *fakeJobRunRepo) MarkSucceeded(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ datatypes.JSON) (bool, error) {
	return false, nil
}

func (f *fakeJobRunRepo) MarkFailed(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string) (bool, error) {
	return false, nil
}

func (f *fakeJobRunRepo) ExistsRunnable(_ context.Context, _ *gorm.DB, _ *uuid.UUID, jobType, dayKey string) (bool, error) {
	return f.runnable[jobType+"|"+dayKey], nil
}

func (f *fakeJobRunRepo) CountByStatus(_ context.Context, _ *gorm.DB) (map[string]int64, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) PurgeFinished(_ context.Context, _ *gorm.DB, _ time.Duration) (int64, error) {
	return 0, nil
}

type fakeRollupRepo struct {
	computed      []*types.Rollup
	upserted      []*types.Rollup
	windowed      []*types.Rollup
	recomputeDays []time.Time
}

func (f *fakeRollupRepo) UpsertMany(_ context.Context, _ *gorm.DB, rollups []*types.Rollup) error {
	f.upserted = append(f.upserted, rollups...)
	return nil
}

func (f *fakeRollupRepo) Window(_ context.Context, _ *gorm.DB, _ uuid.UUID, _, _ time.Time, _ []string) ([]*types.Rollup, error) {
	return f.windowed, nil
}

func (f *fakeRollupRepo) RecomputeDay(_ context.Context, _ *gorm.DB, _ uuid.UUID, day time.Time) ([]*types.Rollup, error) {
	f.recomputeDays = append(f.recomputeDays, day)
	return f.computed, nil
}
