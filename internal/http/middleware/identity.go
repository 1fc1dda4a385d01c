// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller of every API request. A bearer token in the
// Authorization header identifies a registered user; otherwise the
// X-Guest-ID header identifies a guest session. Requests carrying neither
// continue anonymously and are rejected by the operations that need a
// caller.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// HeaderGuestID carries the guest session id of unauthenticated callers.
const HeaderGuestID = "X-Guest-ID"

const (
	ctxKeyIdentity = "identity"
	// ctxKeyUserID mirrors the caller id as a plain string for the logger
	// and the edge throttle.
	ctxKeyUserID = "userID"
)

// IdentityResolver turns request credentials into a caller identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, bearer, guestID string) (domain.Identity, error)
}

// Identity resolves the caller and stores it in the Gin context. Rejected
// credentials abort the request through onError.
func Identity(resolver IdentityResolver, onError ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := bearerToken(c.GetHeader("Authorization"))
		guestID := strings.TrimSpace(c.GetHeader(HeaderGuestID))
		if bearer == "" && guestID == "" {
			c.Next()
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), bearer, guestID)
		if err != nil {
			abortWith(c, onError, err)
			return
		}
		c.Set(ctxKeyIdentity, id)
		c.Set(ctxKeyUserID, id.ID())
		c.Next()
	}
}

// GetIdentity returns the caller resolved by Identity, or the zero identity.
func GetIdentity(c *gin.Context) domain.Identity {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}
	return domain.Identity{}
}

// bearerToken extracts the token of a "Bearer <token>" header value.
func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
