// Package handlers implements the mentor HTTP API on gin.
//
// Errors always leave through fail, which writes ErrorResponse with a stable
// code from errors.go and logs 5xx with the request-scoped logger. Mentor
// resources are returned as {"data": ...}; list endpoints keep a named
// collection plus pagination.
//
//	HTTP/1.1 403 Forbidden
//	{"request_id":"2f1c...","code":"forbidden","message":"thread is not owned by the caller"}
//
//	HTTP/1.1 202 Accepted
//	{"data":[{"id":"9b7e...","name":"week1.pdf","status":"processing"}]}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Machine-readable, see errors.go
	Code string `json:"code" example:"not_found"`
	// Safe to show to users
	Message string `json:"message" example:"mentor lesson not found"`
}

// DataResponse is the success envelope of the mentor resources.
type DataResponse[T any] struct {
	Data T `json:"data"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if len(c.Errors) > 0 {
			ev = ev.Err(c.Errors.Last().Err)
		}
		ev.Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes the error envelope for callers outside this package, such as
// the router's NoRoute handler.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

// created answers 201 with a Location pointing at the new resource.
func created(c *gin.Context, location string, body any) {
	c.Header("Location", location)
	c.JSON(http.StatusCreated, body)
}

func data[T any](c *gin.Context, status int, body T) {
	c.JSON(status, DataResponse[T]{Data: body})
}

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
