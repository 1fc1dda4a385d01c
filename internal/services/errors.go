// Package services holds the business logic of the pickup backend: identity
// resolution, rate limiting, idempotency, order creation and the order
// lifecycle, guest migration and user reports.
//
// This file declares the service-level error values. Each is an
// *apperr.Error so the HTTP layer can map it without a lookup table;
// callers compare with errors.Is, which matches on the error code.
package services

import (
	"net/http"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
)

// Auth and access.
var (
	ErrUnauthorized = apperr.New(apperr.CodeUnauthorized, http.StatusUnauthorized, "authentication required")
	ErrForbidden    = apperr.New(apperr.CodeForbidden, http.StatusForbidden, "not allowed to act on this resource")
)

// Lookups.
var (
	ErrOrderNotFound  = apperr.New(apperr.CodeOrderNotFound, http.StatusNotFound, "order not found")
	ErrVendorNotFound = apperr.New(apperr.CodeVendorNotFound, http.StatusNotFound, "vendor not found")
	ErrGuestNotFound  = apperr.New(apperr.CodeGuestNotFound, http.StatusNotFound, "guest session not found")
	ErrUserNotFound   = apperr.New(apperr.CodeUserNotFound, http.StatusNotFound, "user not found")
)

// Order state and input.
var (
	ErrPickupTimeTooSoon = apperr.New(apperr.CodePickupTimeTooSoon, http.StatusUnprocessableEntity, "pickup time is too soon")
	ErrInvalidTransition = apperr.New(apperr.CodeInvalidTransition, http.StatusUnprocessableEntity, "status transition not allowed")
	ErrCancelNotAllowed  = apperr.New(apperr.CodeCancelNotAllowed, http.StatusUnprocessableEntity, "order can no longer be cancelled")
	ErrInvalidPickupCode = apperr.New(apperr.CodeInvalidPickupCode, http.StatusUnprocessableEntity, "pickup code is invalid or expired")
	ErrInvalidOrderState = apperr.New(apperr.CodeInvalidOrderState, http.StatusUnprocessableEntity, "operation not allowed in the current order state")
	ErrVendorInactive    = apperr.New(apperr.CodeVendorInactive, http.StatusUnprocessableEntity, "vendor is not accepting orders")
	ErrDishUnavailable   = apperr.New(apperr.CodeDishUnavailable, http.StatusUnprocessableEntity, "one or more dishes are unavailable")
)

// Conflicts.
var (
	ErrConcurrentModification = apperr.NewRetryable(apperr.CodeConcurrentModification, http.StatusConflict, "order was modified concurrently", 0)
	ErrRequestInProgress      = apperr.NewRetryable(apperr.CodeRequestInProgress, http.StatusConflict, "a request with this idempotency key is still in progress", 0)
	ErrGuestAlreadyMigrated   = apperr.New(apperr.CodeGuestAlreadyMigrated, http.StatusConflict, "guest data was already migrated")
	ErrDuplicateReport        = apperr.New(apperr.CodeDuplicateReport, http.StatusConflict, "this user was already reported in the last 24 hours")
)

// ErrRateLimited is copied per decision with its own RetryAfter.
var ErrRateLimited = apperr.NewRetryable(apperr.CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", 0)
