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

type TokenHandler struct {
	log  *logger.Logger
	auth services.AuthService
}

func NewTokenHandler(baseLog *logger.Logger, auth services.AuthService) *TokenHandler {
	return &TokenHandler{
		log:  baseLog.With("handler", "TokenHandler"),
		auth: auth,
	}
}

// GET /v1/tokens
func (h *TokenHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tokens, err := h.auth.ListTokens(c.Request.Context(), rd.ProjectID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tokens": tokens})
}

type mintTokenRequest struct {
	Name string `json:"name"`
}

// POST /v1/tokens
//
// The signed JWT appears only in this response; the stored row keeps just
// the metadata.
func (h *TokenHandler) Mint(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req mintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	signed, row, err := h.auth.MintToken(c.Request.Context(), rd.ProjectID, req.Name)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"token":  signed,
		"record": row,
	})
}

// DELETE /v1/tokens/:id
func (h *TokenHandler) Revoke(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.ProjectID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tokenID, err := uuid.Parse(c.Param("id"))
	if err != nil || tokenID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_token_id", err)
		return
	}
	if err := h.auth.RevokeToken(c.Request.Context(), rd.ProjectID, tokenID); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"revoked": tokenID})
}
