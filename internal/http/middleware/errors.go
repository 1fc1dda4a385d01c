package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
)

// ErrorWriter renders err as the API error envelope and aborts the request.
// The router passes handlers.FailErr so middleware and handlers answer in the
// same shape.
type ErrorWriter func(c *gin.Context, err error)

// abortWith uses w when set and a compact envelope otherwise.
func abortWith(c *gin.Context, w ErrorWriter, err error) {
	if w != nil {
		w(c, err)
		c.Abort()
		return
	}
	ae, _ := apperr.From(err)
	body := gin.H{
		"success":    false,
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       ae.Code,
		"message":    ae.Message,
		"retryable":  ae.Retryable,
	}
	if s := ae.RetryAfterSeconds(); s > 0 {
		c.Header("Retry-After", strconv.Itoa(s))
		body["retry_after"] = s
	}
	c.AbortWithStatusJSON(ae.Status, body)
}
