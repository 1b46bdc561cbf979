// Package handlers holds the gin handlers for the public API. They parse
// and validate transport concerns, then delegate to services; no business
// rules live here.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/http/response"
	"github.com/statline/statline-backend/internal/observability"
)

type HealthHandler struct {
	env *checks.Env
}

func NewHealthHandler(env *checks.Env) *HealthHandler {
	return &HealthHandler{env: env}
}

// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type readyFinding struct {
	ID      string `json:"id"`
	Level   string `json:"level"`
	Summary string `json:"summary"`
	Hint    string `json:"hint,omitempty"`
}

// GET /readyz
//
// Readiness runs the database and cache checks against the live backends.
// Any finding at error level or above flips the probe to 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	result, err := checks.Default.Run(c.Request.Context(), h.env, checks.RunOptions{
		Tags:            []checks.Tag{checks.TagDatabase, checks.TagCaches},
		IncludeDatabase: true,
	})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "checks_failed", err)
		return
	}

	findings := make([]readyFinding, 0, len(result.Visible))
	for _, m := range result.Visible {
		observability.CountCheckFinding(strings.ToLower(m.Level.String()))
		findings = append(findings, readyFinding{
			ID:      m.ID,
			Level:   m.Level.String(),
			Summary: m.Summary,
			Hint:    m.Hint,
		})
	}

	if result.HasSeriousAt(checks.LevelError) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"findings": findings,
		})
		return
	}
	response.RespondOK(c, gin.H{
		"status":   "ready",
		"findings": findings,
	})
}
