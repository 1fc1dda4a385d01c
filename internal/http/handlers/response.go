// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelopes shared by every endpoint. Each
// body carries "success"; failures add a stable machine-readable code, a
// user-safe message and retry hints:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 42
//	{
//	  "success": false,
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "too_many_requests",
//	  "message": "rate limit exceeded",
//	  "retryable": true,
//	  "retry_after": 42
//	}
//
// Successful responses wrap the payload in "data":
//
//	HTTP/1.1 201 Created
//	{ "success": true, "data": { "order": { ... } } }
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	Success bool `json:"success" example:"false"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"order_not_found"`
	// Human-readable message (safe to show to users)
	Message string         `json:"message" example:"order not found"`
	Details map[string]any `json:"details,omitempty"`
	// Retryable tells clients whether repeating the request can succeed.
	Retryable bool `json:"retryable"`
	// RetryAfter is the suggested wait in seconds (also sent as Retry-After).
	RetryAfter int `json:"retry_after,omitempty" example:"42"`
}

// SuccessResponse wraps a successful payload.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
}

// fail aborts with an explicit transport-level error (bad JSON, unknown
// route). Domain errors go through failErr.
func fail(c *gin.Context, status int, code, msg string) {
	writeError(c, apperr.New(code, status, msg))
}

// Fail is the exported variant of fail for router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr classifies err and writes it. Unclassified errors become
// internal_error; their text is logged, never sent.
func failErr(c *gin.Context, err error) {
	ae, known := apperr.From(err)
	if !known {
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled error")
	}
	writeError(c, ae)
}

// FailErr is the exported variant of failErr; middleware uses it as its
// ErrorWriter.
func FailErr(c *gin.Context, err error) { failErr(c, err) }

func writeError(c *gin.Context, ae *apperr.Error) {
	resp := ErrorResponse{
		RequestID: middleware.GetRequestID(c),
		Code:      ae.Code,
		Message:   ae.Message,
		Details:   ae.Details,
		Retryable: ae.Retryable,
	}
	if s := ae.RetryAfterSeconds(); s > 0 {
		resp.RetryAfter = s
		c.Header("Retry-After", strconv.Itoa(s))
	}

	if ae.Status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", ae.Status).
			Str("code", ae.Code).
			Str("message", ae.Message).
			Msg("api error")
	}

	c.AbortWithStatusJSON(ae.Status, resp)
}

// ok writes data in the success envelope.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{Success: true, Data: data})
}

// created answers 201, or 200 with Idempotency-Replayed when the request
// replays an earlier completed call.
func created(c *gin.Context, data any) {
	if middleware.IsReplay(c) {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, data)
		return
	}
	ok(c, http.StatusCreated, data)
}
