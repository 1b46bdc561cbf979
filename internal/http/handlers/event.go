package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statline/statline-backend/internal/http/response"
	"github.com/statline/statline-backend/internal/observability"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/services"
)

// maxIngestBody caps one ingest request at 1 MiB before JSON parsing.
const maxIngestBody = 1 << 20

type EventHandler struct {
	log    *logger.Logger
	events services.EventService
}

func NewEventHandler(baseLog *logger.Logger, events services.EventService) *EventHandler {
	return &EventHandler{
		log:    baseLog.With("handler", "EventHandler"),
		events: events,
	}
}

type ingestRequest struct {
	Events []services.IngestEvent `json:"events"`
}

// POST /v1/ingest/:slug/events
//
// Accepts either {"events": [...]} or a bare array. The SDK replays
// batches on network errors, so the response always reports how many rows
// were new versus already seen.
func (h *EventHandler) Ingest(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "body_too_large", err)
		return
	}
	if len(raw) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_body", nil)
		return
	}

	var batch []services.IngestEvent
	var env ingestRequest
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Events) > 0 {
		batch = env.Events
	} else if err := json.Unmarshal(raw, &batch); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}

	result, err := h.events.Ingest(c.Request.Context(), rd.ProjectID, batch)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	observability.CountIngested("accepted", int(result.Accepted))
	observability.CountIngested("deduped", result.Deduped)
	observability.CountIngested("dropped", result.Dropped)

	response.RespondOK(c, gin.H{
		"accepted": result.Accepted,
		"deduped":  result.Deduped,
		"dropped":  result.Dropped,
	})
}

// GET /v1/events?from=&to=&kinds=&limit=
func (h *EventHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	from, to, err := parseWindow(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_window", err)
		return
	}
	var kinds []string
	if rawKinds := strings.TrimSpace(c.Query("kinds")); rawKinds != "" {
		kinds = strings.Split(rawKinds, ",")
	}
	limit := 100
	if rawLimit := c.Query("limit"); rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
	}

	events, err := h.events.ListEvents(c.Request.Context(), rd.ProjectID, from, to, kinds, limit)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"events": events,
		"from":   from,
		"to":     to,
	})
}

// GET /v1/events/kinds
func (h *EventHandler) Kinds(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	kinds, err := h.events.Kinds(c.Request.Context(), rd.ProjectID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"kinds": kinds})
}

// parseWindow reads from/to query params as RFC 3339, defaulting to the
// last 24 hours.
func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now

	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}
