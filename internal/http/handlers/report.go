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

type ReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
}

func NewReportHandler(baseLog *logger.Logger, reports services.ReportService) *ReportHandler {
	return &ReportHandler{
		log:     baseLog.With("handler", "ReportHandler"),
		reports: reports,
	}
}

// GET /v1/reports
func (h *ReportHandler) List(c *gin.Context) {
	infos, err := h.reports.ListReports(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reports": infos})
}

// GET /v1/reports/:name?from=&to=
func (h *ReportHandler) Run(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	from, to, err := parseWindow(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_window", err)
		return
	}
	result, err := h.reports.RunReport(c.Request.Context(), rd.ProjectID, name, from, to)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}
