package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/auth"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

var guestIDPattern = regexp.MustCompile(`^guest_[A-Za-z0-9_-]{8,64}$`)

// ValidGuestID reports whether id is a well-formed guest identifier.
func ValidGuestID(id string) bool { return guestIDPattern.MatchString(id) }

// IdentityResolver turns request credentials into a domain.Identity.
// A verified bearer token wins over a guest id; guest ids that were never
// seen are registered on first use.
type IdentityResolver struct {
	DB       *gorm.DB
	Verifier auth.TokenVerifier

	now func() time.Time
}

// NewIdentityResolver builds a resolver. verifier may be nil, in which case
// only guest callers are accepted.
func NewIdentityResolver(db *gorm.DB, verifier auth.TokenVerifier) *IdentityResolver {
	return &IdentityResolver{DB: db, Verifier: verifier, now: repo.Now}
}

// Resolve authenticates the caller. bearer is the raw token without the
// "Bearer " prefix.
func (r *IdentityResolver) Resolve(ctx context.Context, bearer, guestID string) (id domain.Identity, err error) {
	ctx, span := observability.StartSpan(ctx, "services/IdentityResolver", "Resolve",
		attribute.Bool("auth.bearer", bearer != ""),
		attribute.Bool("auth.guest", guestID != ""),
	)
	defer func() { observability.EndSpan(span, err) }()

	bearer = strings.TrimSpace(bearer)
	guestID = strings.TrimSpace(guestID)

	if bearer != "" {
		if r.Verifier == nil {
			return domain.Identity{}, ErrUnauthorized.WithMessage("bearer tokens are not accepted")
		}
		sub, verr := r.Verifier.Verify(ctx, bearer)
		if verr != nil {
			msg := "invalid bearer token"
			if errors.Is(verr, auth.ErrExpiredToken) {
				msg = "bearer token expired"
			}
			return domain.Identity{}, ErrUnauthorized.WithMessage(msg)
		}
		return domain.UserIdentity(sub), nil
	}

	if guestID == "" {
		return domain.Identity{}, ErrUnauthorized
	}
	if !ValidGuestID(guestID) {
		return domain.Identity{}, ErrUnauthorized.WithMessage("malformed guest id")
	}

	sess, terr := repo.TouchGuestSession(ctx, r.DB, guestID, r.clock())
	if terr != nil {
		log.Error().Err(terr).Str("guest_id", guestID).Msg("touch guest session")
		return domain.Identity{}, errors.Wrap(terr, "register guest session")
	}
	if sess.Migrated() {
		return domain.Identity{}, ErrUnauthorized.WithMessage("guest session was merged into an account; sign in instead")
	}
	return domain.GuestIdentity(guestID), nil
}

func (r *IdentityResolver) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return repo.Now()
}
