package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/notify"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// PickupCode is a code the buyer presents when collecting an order.
type PickupCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GeneratePickupCode returns the order's live pickup code, issuing a fresh
// one when the stored code is missing or expired. Only the vendor may call
// it, and only while the order is confirmed, preparing or ready.
func (s *OrderService) GeneratePickupCode(ctx context.Context, id domain.Identity, orderID, idempotencyKey string) (out *PickupCode, err error) {
	ctx, span := observability.StartSpan(ctx, orderTracer, "GeneratePickupCode", attribute.String("order.id", orderID))
	defer func() { observability.EndSpan(span, err) }()

	if id.IsZero() {
		return nil, ErrUnauthorized
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if err := validateIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}

	body := map[string]string{"order_id": orderID}
	return runIdempotent(ctx, s.Idem, FnGeneratePickupCode, id.ID(), idempotencyKey, body,
		func(ctx context.Context) (*PickupCode, error) {
			o, err := s.loadOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return s.issuePickupCode(ctx, id, o)
		})
}

func (s *OrderService) issuePickupCode(ctx context.Context, id domain.Identity, o *domain.Order) (*PickupCode, error) {
	role, _, err := s.participant(ctx, o, id)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleVendor {
		return nil, ErrForbidden.WithMessage("only the vendor can issue a pickup code")
	}
	switch o.Status {
	case domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady:
	default:
		return nil, ErrInvalidOrderState.WithMessage(fmt.Sprintf("no pickup code can be issued for an order that is %s", o.Status))
	}

	now := s.clock()
	if o.PickupCode != nil && o.PickupCodeExpiresAt != nil && now.Before(*o.PickupCodeExpiresAt) {
		return &PickupCode{Code: *o.PickupCode, ExpiresAt: *o.PickupCodeExpiresAt}, nil
	}

	code, err := newPickupCode()
	if err != nil {
		return nil, errors.Wrap(err, "generate pickup code")
	}
	expires := now.Add(s.pickupCodeTTL())
	err = repo.UpdateOrderIfUnchanged(ctx, s.DB, o.ID, o.UpdatedAt, map[string]any{
		"pickup_code":            code,
		"pickup_code_expires_at": expires,
		"updated_at":             now,
	})
	if errors.Is(err, repo.ErrConflict) {
		return nil, ErrConcurrentModification
	}
	if err != nil {
		return nil, errors.Wrap(err, "store pickup code")
	}
	log.Info().Str("order_id", o.ID).Time("expires_at", expires).Msg("pickup code issued")

	s.notify("notify_pickup_code", notify.Notification{
		RecipientID: o.OwnerID(),
		Kind:        domain.NotifyPickupCode,
		Title:       notify.Title("your pickup code"),
		Body:        fmt.Sprintf("Show code %s when you collect your order. It expires at %s.", code, expires.Format(time.Kitchen)),
		Data:        map[string]any{"order_id": o.ID, "expires_at": expires},
	})
	return &PickupCode{Code: code, ExpiresAt: expires}, nil
}
