package reports

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/statline/statline-backend/internal/data/repos/testutil"
	types "github.com/statline/statline-backend/internal/domain"
)

func TestEngineRunFlagHealth(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	engine := NewEngine(tx, nil, 0, testutil.Logger(t))
	p := testutil.SeedProject(t, ctx, tx, "reports")
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	webFlag := testutil.NewEvent(p.ID, types.EventFlagCheck, day.Add(time.Hour))
	webFlag.OK = testutil.PtrBool(true)
	webFlag.Bits = 3
	webFlag.Source = "web"
	iosFlag := testutil.NewEvent(p.ID, types.EventFlagCheck, day.Add(2*time.Hour))
	iosFlag.OK = testutil.PtrBool(false)
	iosFlag.Bits = 6
	iosFlag.Source = "ios"
	testutil.SeedEvents(t, ctx, tx, webFlag, iosFlag)

	res, err := engine.Run(ctx, p.ID, "flag_health", Window{From: day, To: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Cached {
		t.Fatalf("Run: first computation should not be cached")
	}
	if res.Report != "flag_health" || len(res.Rows) != 1 {
		t.Fatalf("Run: got %+v", res)
	}

	row := res.Rows[0]
	if v, ok := row["all_ok"].(bool); !ok || v {
		t.Fatalf("all_ok: got %v", row["all_ok"])
	}
	if v, ok := row["any_ok"].(bool); !ok || !v {
		t.Fatalf("any_ok: got %v", row["any_ok"])
	}
	if v, ok := row["bits_common"].(int64); !ok || v != 2 {
		t.Fatalf("bits_common: got %v", row["bits_common"])
	}
	if v, ok := row["bits_seen"].(int64); !ok || v != 7 {
		t.Fatalf("bits_seen: got %v", row["bits_seen"])
	}
	if v, ok := row["web_bits_seen"].(int64); !ok || v != 3 {
		t.Fatalf("web_bits_seen: got %v", row["web_bits_seen"])
	}
}

func TestEngineRunGroupedDigest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	engine := NewEngine(tx, nil, 0, testutil.Logger(t))
	p := testutil.SeedProject(t, ctx, tx, "digest")
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	testutil.SeedEvents(t, ctx, tx,
		testutil.NewEvent(p.ID, types.EventAction, day.Add(time.Hour)),
		testutil.NewEvent(p.ID, types.EventPageView, day.Add(2*time.Hour)),
	)

	res, err := engine.Run(ctx, p.ID, "session_digest", Window{From: day, To: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Run: expected one row per kind, got %d", len(res.Rows))
	}
	if res.Rows[0]["kind"] != types.EventAction || res.Rows[1]["kind"] != types.EventPageView {
		t.Fatalf("Run: expected kind-ordered rows, got %v", res.Rows)
	}
}

func TestEngineRunUnknownReport(t *testing.T) {
	engine := NewEngine(nil, nil, 0, testutil.Logger(t))
	_, err := engine.Run(context.Background(), uuid.New(), "nope", Window{From: time.Now().Add(-time.Hour), To: time.Now()})
	if !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestEngineRunBadWindow(t *testing.T) {
	engine := NewEngine(nil, nil, 0, testutil.Logger(t))
	now := time.Now()
	_, err := engine.Run(context.Background(), uuid.New(), "flag_health", Window{From: now, To: now})
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestEngineCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run report cache tests")
	}
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	engine := NewEngine(tx, rdb, time.Minute, testutil.Logger(t))
	p := testutil.SeedProject(t, ctx, tx, "cached")
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	e := testutil.NewEvent(p.ID, types.EventFlagCheck, day.Add(time.Hour))
	e.OK = testutil.PtrBool(true)
	testutil.SeedEvents(t, ctx, tx, e)

	win := Window{From: day, To: day.Add(24 * time.Hour)}
	first, err := engine.Run(ctx, p.ID, "flag_health", win)
	if err != nil {
		t.Fatalf("Run #1: %v", err)
	}
	if first.Cached {
		t.Fatalf("Run #1 should compute")
	}

	second, err := engine.Run(ctx, p.ID, "flag_health", win)
	if err != nil {
		t.Fatalf("Run #2: %v", err)
	}
	if !second.Cached {
		t.Fatalf("Run #2 should come from cache")
	}
	if len(second.Rows) != len(first.Rows) {
		t.Fatalf("cached rows diverge: %d vs %d", len(second.Rows), len(first.Rows))
	}
}
