package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/http/response"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// JobHandler lets the dashboard watch queued work and kick off ad-hoc
// recomputes without waiting for the nightly cron.
type JobHandler struct {
	log     *logger.Logger
	jobRuns repos.JobRunRepo
}

func NewJobHandler(baseLog *logger.Logger, jobRuns repos.JobRunRepo) *JobHandler {
	return &JobHandler{
		log:     baseLog.With("handler", "JobHandler"),
		jobRuns: jobRuns,
	}
}

// GET /v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil || jobID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	found, err := h.jobRuns.GetByIDs(c.Request.Context(), nil, []uuid.UUID{jobID})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	// Foreign jobs look identical to missing ones.
	if len(found) == 0 || found[0].ProjectID == nil || *found[0].ProjectID != rd.ProjectID {
		response.RespondError(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	response.RespondOK(c, gin.H{"job": found[0]})
}

type recomputeRequest struct {
	Day string `json:"day"`
}

// POST /v1/rollups/recompute
//
// Queues a rollup for one UTC day. A day that already has a runnable job
// is not queued twice.
func (h *JobHandler) EnqueueRollup(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req recomputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if _, err := time.ParseInLocation(types.DayKeyLayout, req.Day, time.UTC); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_day", err)
		return
	}

	projectID := rd.ProjectID
	exists, err := h.jobRuns.ExistsRunnable(c.Request.Context(), nil, &projectID, types.JobTypeRollupDay, req.Day)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if exists {
		response.RespondAccepted(c, gin.H{"queued": false, "day": req.Day})
		return
	}

	payload, err := json.Marshal(types.RollupDayPayload{Day: req.Day})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "encode_payload_failed", err)
		return
	}
	queued, err := h.jobRuns.Enqueue(c.Request.Context(), nil, []*types.JobRun{{
		ProjectID: &projectID,
		JobType:   types.JobTypeRollupDay,
		Payload:   datatypes.JSON(payload),
	}})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	h.log.Info("rollup queued", "project_id", projectID, "day", req.Day, "job_id", queued[0].ID)
	response.RespondAccepted(c, gin.H{
		"queued": true,
		"day":    req.Day,
		"job_id": queued[0].ID,
	})
}

type warmRequest struct {
	Days int `json:"days"`
}

// POST /v1/reports/warm
func (h *JobHandler) EnqueueWarm(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	// The body is optional; an empty POST warms the default window.
	var req warmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
			return
		}
	}
	if req.Days < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_days", nil)
		return
	}

	day := time.Now().UTC().Format(types.DayKeyLayout)
	projectID := rd.ProjectID
	exists, err := h.jobRuns.ExistsRunnable(c.Request.Context(), nil, &projectID, types.JobTypeReportWarm, day)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if exists {
		response.RespondAccepted(c, gin.H{"queued": false, "day": day})
		return
	}

	payload, err := json.Marshal(types.ReportWarmPayload{Day: day, Days: req.Days})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "encode_payload_failed", err)
		return
	}
	queued, err := h.jobRuns.Enqueue(c.Request.Context(), nil, []*types.JobRun{{
		ProjectID: &projectID,
		JobType:   types.JobTypeReportWarm,
		Payload:   datatypes.JSON(payload),
	}})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"queued": true,
		"day":    day,
		"job_id": queued[0].ID,
	})
}
