package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statline/statline-backend/internal/http/response"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/services"
)

type InsightHandler struct {
	log      *logger.Logger
	insights services.InsightService
}

func NewInsightHandler(baseLog *logger.Logger, insights services.InsightService) *InsightHandler {
	return &InsightHandler{
		log:      baseLog.With("handler", "InsightHandler"),
		insights: insights,
	}
}

// GET /v1/insights/overview?from=&to=
func (h *InsightHandler) Overview(c *gin.Context) {
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
	overview, err := h.insights.Overview(c.Request.Context(), rd.ProjectID, from, to)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, overview)
}

// GET /v1/insights/sessions?kind=
func (h *InsightHandler) SessionDigest(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	kind := strings.TrimSpace(c.Query("kind"))
	digest, err := h.insights.SessionDigest(c.Request.Context(), rd.ProjectID, kind)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"kind":   kind,
		"digest": digest,
	})
}

// GET /v1/insights/rollups?from=&to=&kinds=
func (h *InsightHandler) RollupWindow(c *gin.Context) {
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
	rollups, err := h.insights.RollupWindow(c.Request.Context(), rd.ProjectID, from, to, kinds)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"rollups": rollups,
		"from":    from,
		"to":      to,
	})
}
