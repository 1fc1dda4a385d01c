// Package apperr defines the application error taxonomy shared by services
// and the HTTP layer.
//
// An *Error carries a stable machine-readable code, the HTTP status it maps
// to, a user-safe message, and retry hints. Sentinel values are declared once
// (see services/errors.go) and compared with errors.Is, which matches on Code
// so that per-request copies (e.g. a rate-limit error with its own
// RetryAfter) still satisfy the sentinel.
package apperr

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Stable error codes returned to clients.
const (
	CodeValidation        = "validation_failed"
	CodePickupTimeTooSoon = "pickup_time_too_soon"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"

	CodeOrderNotFound  = "order_not_found"
	CodeVendorNotFound = "vendor_not_found"
	CodeGuestNotFound  = "guest_not_found"
	CodeUserNotFound   = "user_not_found"

	CodeInvalidTransition = "invalid_status_transition"
	CodeCancelNotAllowed  = "cancel_not_allowed"
	CodeInvalidPickupCode = "invalid_pickup_code"
	CodeInvalidOrderState = "invalid_order_state"
	CodeVendorInactive    = "vendor_inactive"
	CodeDishUnavailable   = "dish_unavailable"

	CodeConcurrentModification = "concurrent_modification"
	CodeRequestInProgress      = "request_in_progress"
	CodeGuestAlreadyMigrated   = "guest_already_migrated"
	CodeDuplicateReport        = "duplicate_report"

	CodeRateLimited = "too_many_requests"
	CodeInternal    = "internal_error"
)

// Error is a classified application error.
type Error struct {
	Code       string
	Status     int
	Message    string
	Retryable  bool
	RetryAfter time.Duration
	Details    map[string]any
}

// New declares a non-retryable error.
func New(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// NewRetryable declares an error the caller may retry after RetryAfter.
func NewRetryable(code string, status int, msg string, retryAfter time.Duration) *Error {
	return &Error{Code: code, Status: status, Message: msg, Retryable: true, RetryAfter: retryAfter}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithDetail returns a copy with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// WithRetryAfter returns a retryable copy with the given hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	cp := *e
	cp.Retryable = true
	cp.RetryAfter = d
	return &cp
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

// Validation builds a validation_failed error with a specific message.
func Validation(msg string) *Error {
	return New(CodeValidation, http.StatusBadRequest, msg)
}

// Internal is the catch-all for unclassified failures.
var Internal = New(CodeInternal, http.StatusInternalServerError, "internal server error")

// From classifies err. Unknown errors become Internal; the second return
// reports whether err was already classified.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return Internal, false
}
