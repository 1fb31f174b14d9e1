// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy next to the human-readable message. Service errors are mapped by
// kind (see services.ErrNotFound and friends) in failErr.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "thread not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation       = "validation_failed"
	ErrCodeInvalidTool      = "invalid_tool_payload"
	ErrCodeNotOwned         = "thread_not_owned"
	ErrCodeThreadClosed     = "thread_not_active"
	ErrCodeDocumentBusy     = "document_busy"
	ErrCodeAnswerFailed     = "answer_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failErr maps a service error onto the error envelope. The most specific
// sentinel wins; otherwise the error kind picks the status. Messages of 4xx
// errors are the service's own and safe to return; 5xx messages are generic.
func failErr(c *gin.Context, err error, internalCode string) {
	switch {
	case errors.Is(err, services.ErrInvalidToolPayload):
		fail(c, http.StatusBadRequest, ErrCodeInvalidTool, err.Error())
	case errors.Is(err, services.ErrThreadNotOwned):
		fail(c, http.StatusForbidden, ErrCodeNotOwned, err.Error())
	case errors.Is(err, services.ErrThreadNotActive):
		fail(c, http.StatusConflict, ErrCodeThreadClosed, err.Error())
	case errors.Is(err, services.ErrDocumentBusy):
		fail(c, http.StatusConflict, ErrCodeDocumentBusy, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		if internalCode == "" {
			internalCode = ErrCodeInternal
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, internalCode, "internal server error")
	}
}
