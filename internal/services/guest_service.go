package services

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// GuestService merges guest sessions into registered accounts.
type GuestService struct {
	DB   *gorm.DB
	Idem *IdempotencyCache

	now func() time.Time
}

// NewGuestService builds a GuestService.
func NewGuestService(db *gorm.DB, idem *IdempotencyCache) *GuestService {
	return &GuestService{DB: db, Idem: idem, now: repo.Now}
}

// MigrateGuestData moves everything the guest session owns to the caller's
// account. targetUserID defaults to the caller and must equal it. A session
// can be migrated once; later attempts get ErrGuestAlreadyMigrated.
func (s *GuestService) MigrateGuestData(ctx context.Context, id domain.Identity, guestID, targetUserID, idempotencyKey string) (out *domain.MigrationResult, err error) {
	ctx, span := observability.StartSpan(ctx, "services/GuestService", "MigrateGuestData",
		attribute.String("guest.id", guestID),
	)
	defer func() { observability.EndSpan(span, err) }()

	if id.IsZero() {
		return nil, ErrUnauthorized
	}
	if id.IsGuest() {
		return nil, ErrForbidden.WithMessage("sign in to migrate guest data")
	}
	guestID = strings.TrimSpace(guestID)
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		targetUserID = id.UserID
	}
	if targetUserID != id.UserID {
		return nil, ErrForbidden.WithMessage("guest data can only be migrated into your own account")
	}
	if !ValidGuestID(guestID) {
		return nil, apperr.Validation("malformed guest id")
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if err := validateIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}

	body := map[string]string{"guest_id": guestID, "target_user_id": targetUserID}
	return runIdempotent(ctx, s.Idem, FnMigrateGuestData, id.ID(), idempotencyKey, body,
		func(ctx context.Context) (*domain.MigrationResult, error) {
			return s.migrate(ctx, guestID, targetUserID)
		})
}

func (s *GuestService) migrate(ctx context.Context, guestID, userID string) (*domain.MigrationResult, error) {
	sess, err := repo.GetGuestSession(ctx, s.DB, guestID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGuestNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load guest session")
	}
	if sess.Migrated() {
		return nil, ErrGuestAlreadyMigrated
	}

	res, err := repo.MigrateGuestData(ctx, s.DB, guestID, userID, s.clock())
	if err != nil {
		return nil, errors.Wrap(err, "migrate guest data")
	}
	if !res.Success {
		// Another request claimed the session between the read and the
		// transaction.
		return nil, ErrGuestAlreadyMigrated
	}

	log.Info().
		Str("guest_id", guestID).
		Str("user_id", userID).
		Int64("orders", res.OrdersMigrated).
		Int64("messages", res.MessagesMigrated).
		Msg("guest data migrated")
	return &res, nil
}

func (s *GuestService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return repo.Now()
}
