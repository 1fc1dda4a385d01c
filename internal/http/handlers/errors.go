// Package handlers defines the transport-level error codes.
//
// Domain failures carry their own codes (internal/apperr) and reach clients
// unchanged through failErr. The codes below cover what only the transport
// can detect: malformed JSON, unknown routes, wrong methods.
package handlers

import "github.com/tbourn/go-pickup-backend/internal/apperr"

const (
	ErrCodeBadRequest       = apperr.CodeValidation
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = apperr.CodeInternal
)
