package handlers

import (
	"fmt"

	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/jobs/runtime"
	"github.com/statline/statline-backend/internal/services"
)

// ReportWarm primes the report cache for one project so dashboards load
// from redis instead of recomputing after every rollup.
type ReportWarm struct {
	reports services.ReportService
}

func NewReportWarm(reports services.ReportService) *ReportWarm {
	return &ReportWarm{reports: reports}
}

func (h *ReportWarm) Type() string { return types.JobTypeReportWarm }

func (h *ReportWarm) Run(jc *runtime.Context) error {
	var payload types.ReportWarmPayload
	if err := jc.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if jc.Job.ProjectID == nil {
		return fmt.Errorf("report.warm requires a project id")
	}

	warmed, failed, err := h.reports.WarmReports(jc.Ctx, *jc.Job.ProjectID, payload.Days)
	if err != nil {
		return err
	}
	jc.Succeed(map[string]interface{}{"warmed": warmed, "failed": failed})
	return nil
}
