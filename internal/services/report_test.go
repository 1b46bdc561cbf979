package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/reports"
)

// dryEngine renders report SQL without executing it, which is enough to
// drive the service paths that only orchestrate the engine.
func dryEngine(t *testing.T) *reports.Engine {
	t.Helper()
	gdb, _ := mockDB(t)
	dry := gdb.Session(&gorm.Session{DryRun: true})
	return reports.NewEngine(dry, nil, 0, testLog(t))
}

func TestListReportsExposesCatalog(t *testing.T) {
	svc := NewReportService(testLog(t), dryEngine(t))
	infos, err := svc.ListReports(context.Background())
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(infos) == 0 {
		t.Fatalf("no reports listed")
	}
	byName := map[string]ReportInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	flag, ok := byName["flag_health"]
	if !ok {
		t.Fatalf("flag_health missing from %v", byName)
	}
	if flag.Title == "" || len(flag.Kinds) != 1 || flag.Kinds[0] != types.EventFlagCheck {
		t.Fatalf("flag_health info: %+v", flag)
	}
}

func TestRunReportValidatesProject(t *testing.T) {
	svc := NewReportService(testLog(t), dryEngine(t))
	now := time.Now()
	_, err := svc.RunReport(context.Background(), uuid.Nil, "flag_health", now.Add(-time.Hour), now)
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("nil project: want validation error, got %v", err)
	}
}

func TestWarmReportsCoversWholeCatalog(t *testing.T) {
	svc := NewReportService(testLog(t), dryEngine(t))
	cat, err := reports.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	warmed, failed, err := svc.WarmReports(context.Background(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("WarmReports: %v", err)
	}
	if failed != 0 {
		t.Fatalf("failed=%d", failed)
	}
	if warmed != len(cat.Names()) {
		t.Fatalf("warmed=%d, want %d", warmed, len(cat.Names()))
	}
}
