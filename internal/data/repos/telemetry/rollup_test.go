package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/statline/statline-backend/internal/data/repos/testutil"
	types "github.com/statline/statline-backend/internal/domain"
)

func TestRollupRepoRecomputeDay(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewRollupRepo(db, testutil.Logger(t))
	p := testutil.SeedProject(t, ctx, tx, "rollups")
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	sessionA := uuid.New()
	sessionB := uuid.New()
	metrics := []struct {
		value    float64
		duration float64
		session  uuid.UUID
	}{
		{10, 100, sessionA},
		{20, 200, sessionA},
		{30, 300, sessionB},
	}
	for i, m := range metrics {
		e := testutil.NewEvent(p.ID, types.EventMetric, day.Add(time.Duration(i)*time.Hour))
		e.Value = testutil.PtrFloat(m.value)
		e.DurationMS = testutil.PtrFloat(m.duration)
		e.SessionID = m.session
		testutil.SeedEvents(t, ctx, tx, e)
	}

	okFlag := testutil.NewEvent(p.ID, types.EventFlagCheck, day.Add(4*time.Hour))
	okFlag.OK = testutil.PtrBool(true)
	okFlag.Bits = 3
	badFlag := testutil.NewEvent(p.ID, types.EventFlagCheck, day.Add(5*time.Hour))
	badFlag.OK = testutil.PtrBool(false)
	badFlag.Bits = 6
	testutil.SeedEvents(t, ctx, tx, okFlag, badFlag)

	// Next-day event stays out of this day's rollup.
	testutil.SeedEvents(t, ctx, tx, testutil.NewEvent(p.ID, types.EventMetric, day.Add(25*time.Hour)))

	rollups, err := repo.RecomputeDay(ctx, tx, p.ID, day)
	if err != nil {
		t.Fatalf("RecomputeDay: %v", err)
	}
	if len(rollups) != 2 {
		t.Fatalf("RecomputeDay: expected 2 kinds, got %d", len(rollups))
	}

	byKind := map[string]*types.Rollup{}
	for _, r := range rollups {
		byKind[r.Kind] = r
	}

	metric := byKind[types.EventMetric]
	if metric == nil {
		t.Fatalf("RecomputeDay: missing metric rollup")
	}
	if metric.Count != 3 || metric.Sessions != 2 {
		t.Fatalf("RecomputeDay: metric count=%d sessions=%d", metric.Count, metric.Sessions)
	}
	if metric.ValueSum == nil || *metric.ValueSum != 60 {
		t.Fatalf("RecomputeDay: metric value_sum=%v", metric.ValueSum)
	}
	if metric.ValueAvg == nil || *metric.ValueAvg != 20 {
		t.Fatalf("RecomputeDay: metric value_avg=%v", metric.ValueAvg)
	}
	if metric.DurationAvg == nil || *metric.DurationAvg != 200 {
		t.Fatalf("RecomputeDay: metric duration_avg=%v", metric.DurationAvg)
	}
	if metric.OKAll != nil {
		t.Fatalf("RecomputeDay: metric ok_all should stay NULL, got %v", *metric.OKAll)
	}

	flag := byKind[types.EventFlagCheck]
	if flag == nil {
		t.Fatalf("RecomputeDay: missing flag_check rollup")
	}
	if flag.Count != 2 {
		t.Fatalf("RecomputeDay: flag count=%d", flag.Count)
	}
	if flag.OKAll == nil || *flag.OKAll {
		t.Fatalf("RecomputeDay: flag ok_all=%v", flag.OKAll)
	}
	if flag.OKAny == nil || !*flag.OKAny {
		t.Fatalf("RecomputeDay: flag ok_any=%v", flag.OKAny)
	}
	if flag.BitsAll == nil || *flag.BitsAll != 2 {
		t.Fatalf("RecomputeDay: flag bits_all=%v", flag.BitsAll)
	}
	if flag.BitsAny == nil || *flag.BitsAny != 7 {
		t.Fatalf("RecomputeDay: flag bits_any=%v", flag.BitsAny)
	}

	if err := repo.UpsertMany(ctx, tx, rollups); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	// Recompute and upsert again; the unique (project, day, kind) rows update
	// in place instead of duplicating.
	again, err := repo.RecomputeDay(ctx, tx, p.ID, day)
	if err != nil {
		t.Fatalf("RecomputeDay (again): %v", err)
	}
	if err := repo.UpsertMany(ctx, tx, again); err != nil {
		t.Fatalf("UpsertMany (again): %v", err)
	}

	window, err := repo.Window(ctx, tx, p.ID, day, day, nil)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("Window: expected 2 rows after re-upsert, got %d", len(window))
	}
	if window[0].Kind != types.EventFlagCheck || window[1].Kind != types.EventMetric {
		t.Fatalf("Window: expected kind ASC order, got %q then %q", window[0].Kind, window[1].Kind)
	}

	filtered, err := repo.Window(ctx, tx, p.ID, day, day, []string{types.EventMetric})
	if err != nil || len(filtered) != 1 || filtered[0].Kind != types.EventMetric {
		t.Fatalf("Window (filtered): err=%v rows=%+v", err, filtered)
	}
}

func TestRollupRepoUpsertManyEmpty(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewRollupRepo(db, testutil.Logger(t))
	if err := repo.UpsertMany(context.Background(), tx, nil); err != nil {
		t.Fatalf("UpsertMany (empty): %v", err)
	}
}
