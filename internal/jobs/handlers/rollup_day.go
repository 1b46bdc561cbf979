// Package handlers holds the built-in job handlers. Each one decodes its
// payload, delegates to a service and finalizes the run with Succeed; errors
// bubble to the worker, which marks the run failed.
package handlers

import (
	"fmt"
	"time"

	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/jobs/runtime"
	"github.com/statline/statline-backend/internal/services"
)

// RollupDay recomputes the per-kind aggregates of one project day. The
// ingest path enqueues it for every day a batch touches; the scheduler
// enqueues it nightly to finalize the previous day.
type RollupDay struct {
	insights services.InsightService
}

func NewRollupDay(insights services.InsightService) *RollupDay {
	return &RollupDay{insights: insights}
}

func (h *RollupDay) Type() string { return types.JobTypeRollupDay }

func (h *RollupDay) Run(jc *runtime.Context) error {
	var payload types.RollupDayPayload
	if err := jc.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if jc.Job.ProjectID == nil {
		return fmt.Errorf("rollup.day requires a project id")
	}
	if payload.Day == "" {
		return fmt.Errorf("rollup.day requires a day key")
	}
	day, err := time.ParseInLocation(types.DayKeyLayout, payload.Day, time.UTC)
	if err != nil {
		return fmt.Errorf("bad day key %q: %w", payload.Day, err)
	}

	kinds, err := h.insights.RecomputeDay(jc.Ctx, *jc.Job.ProjectID, day)
	if err != nil {
		return err
	}
	jc.Succeed(map[string]interface{}{"day": payload.Day, "kinds": kinds})
	return nil
}
