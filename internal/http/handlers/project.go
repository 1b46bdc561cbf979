package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statline/statline-backend/internal/http/response"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/services"
)

// ProjectHandler exposes the authenticated project's own settings. Creating
// and deleting projects is an operator action and stays on the CLI.
type ProjectHandler struct {
	log      *logger.Logger
	projects services.ProjectService
}

func NewProjectHandler(baseLog *logger.Logger, projects services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		log:      baseLog.With("handler", "ProjectHandler"),
		projects: projects,
	}
}

// GET /v1/project
func (h *ProjectHandler) GetCurrent(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	project, err := h.projects.GetProject(c.Request.Context(), rd.ProjectID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"project": project})
}

type updateProjectRequest struct {
	Name  *string `json:"name"`
	Debug *bool   `json:"debug"`
}

// PATCH /v1/project
func (h *ProjectHandler) Update(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if err := h.projects.UpdateProject(c.Request.Context(), rd.ProjectID, req.Name, req.Debug); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	project, err := h.projects.GetProject(c.Request.Context(), rd.ProjectID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"project": project})
}

// POST /v1/project/rotate-key
//
// The response is the only place the new plaintext key ever appears; the
// old key stops working the moment this returns.
func (h *ProjectHandler) RotateKey(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	key, err := h.projects.RotateIngestKey(c.Request.Context(), rd.ProjectID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	h.log.Info("ingest key rotated", "project_id", rd.ProjectID)
	response.RespondOK(c, gin.H{"ingest_key": key})
}
