// Package response is the single JSON envelope for the API. Handlers never
// call c.JSON for errors directly; they go through RespondError or
// RespondDomainError so error bodies stay uniform and domain error codes
// map to one status table.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/statline/statline-backend/internal/domain"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondAccepted is for enqueue-style endpoints where the work happens
// later on the worker.
func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError maps a service error onto a status via its domain
// code. The short message is echoed to the client; the wrapped cause and
// the operation are not.
func RespondDomainError(c *gin.Context, err error) {
	var domErr *types.Error
	if !errors.As(err, &domErr) {
		RespondError(c, http.StatusInternalServerError, string(types.CodeInternal), err)
		return
	}
	msg := domErr.Message
	if msg == "" {
		msg = string(domErr.Code)
	}
	c.JSON(StatusOf(domErr.Code), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    string(domErr.Code),
		},
	})
}

// StatusOf is the one place the code-to-status table lives.
func StatusOf(code types.ErrorCode) int {
	switch code {
	case types.CodeValidation:
		return http.StatusBadRequest
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeConflict:
		return http.StatusConflict
	case types.CodeUnauthorized:
		return http.StatusUnauthorized
	case types.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case types.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
