package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/reports"
)

// DefaultWarmDays is the window report.warm jobs prime when the payload
// does not say otherwise.
const DefaultWarmDays = 7

// ReportInfo describes one catalog entry for listing endpoints.
type ReportInfo struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Kinds       []string `json:"kinds,omitempty"`
	GroupBy     []string `json:"group_by,omitempty"`
}

type ReportService interface {
	ListReports(ctx context.Context) ([]ReportInfo, error)
	RunReport(ctx context.Context, projectID uuid.UUID, name string, from, to time.Time) (*reports.Result, error)
	// WarmReports primes the cache for every catalog report. Individual
	// report failures are logged and counted, not fatal.
	WarmReports(ctx context.Context, projectID uuid.UUID, days int) (warmed, failed int, err error)
}

type reportService struct {
	log    *logger.Logger
	engine *reports.Engine
}

func NewReportService(baseLog *logger.Logger, engine *reports.Engine) ReportService {
	return &reportService{
		log:    baseLog.With("service", "ReportService"),
		engine: engine,
	}
}

func (s *reportService) ListReports(ctx context.Context) ([]ReportInfo, error) {
	cat, err := reports.Load()
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, "ReportService.ListReports", err)
	}
	out := make([]ReportInfo, 0, len(cat.Reports))
	for _, def := range cat.Reports {
		out = append(out, ReportInfo{
			Name:        def.Name,
			Title:       def.Title,
			Description: def.Description,
			Kinds:       def.Kinds,
			GroupBy:     def.GroupBy,
		})
	}
	return out, nil
}

func (s *reportService) RunReport(ctx context.Context, projectID uuid.UUID, name string, from, to time.Time) (*reports.Result, error) {
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, "ReportService.RunReport", "missing project id", nil)
	}
	return s.engine.Run(ctx, projectID, name, reports.Window{From: from, To: to})
}

func (s *reportService) WarmReports(ctx context.Context, projectID uuid.UUID, days int) (int, int, error) {
	const op = "ReportService.WarmReports"
	if projectID == uuid.Nil {
		return 0, 0, types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	if days <= 0 {
		days = DefaultWarmDays
	}
	cat, err := reports.Load()
	if err != nil {
		return 0, 0, types.Wrap(types.CodeInternal, op, err)
	}

	to := time.Now().UTC()
	win := reports.Window{From: to.AddDate(0, 0, -days), To: to}
	warmed, failed := 0, 0
	for _, name := range cat.Names() {
		if _, err := s.engine.Run(ctx, projectID, name, win); err != nil {
			failed++
			s.log.Warn("warm report failed", "project_id", projectID, "report", name, "error", err)
			continue
		}
		warmed++
	}
	return warmed, failed, nil
}
