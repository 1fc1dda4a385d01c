package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/notify"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// ChangeStatusInput asks to move an order to Status. PickupCode is needed
// for picked_up and Reason for cancelled.
type ChangeStatusInput struct {
	Status         domain.OrderStatus `json:"status"`
	PickupCode     string             `json:"pickup_code,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	IdempotencyKey string             `json:"-"`
}

// ChangeStatus moves an order one step along its lifecycle.
//
// Asking for the status the order already has succeeds without touching
// it. Every real transition is a conditional write on updated_at; losing a
// race yields ErrConcurrentModification and the caller decides whether to
// retry.
func (s *OrderService) ChangeStatus(ctx context.Context, id domain.Identity, orderID string, in ChangeStatusInput) (out *OrderDetails, err error) {
	ctx, span := observability.StartSpan(ctx, orderTracer, "ChangeStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.to", string(in.Status)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if id.IsZero() {
		return nil, ErrUnauthorized
	}
	in.Status = domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
	in.Reason = strings.TrimSpace(in.Reason)
	in.PickupCode = strings.TrimSpace(in.PickupCode)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if !in.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", in.Status))
	}
	if utf8.RuneCountInString(in.Reason) > MaxCancelReasonLen {
		return nil, apperr.Validation(fmt.Sprintf("reason must be at most %d characters", MaxCancelReasonLen))
	}
	if err := validateIdempotencyKey(in.IdempotencyKey); err != nil {
		return nil, err
	}

	body := struct {
		OrderID string `json:"order_id"`
		ChangeStatusInput
	}{orderID, in}
	return runIdempotent(ctx, s.Idem, FnChangeOrderStatus, id.ID(), in.IdempotencyKey, body,
		func(ctx context.Context) (*OrderDetails, error) {
			o, err := s.loadOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return s.applyStatus(ctx, id, o, in)
		})
}

// applyStatus runs the transition rules against the snapshot o. The write
// only lands if the stored row still carries o.UpdatedAt.
func (s *OrderService) applyStatus(ctx context.Context, id domain.Identity, o *domain.Order, in ChangeStatusInput) (*OrderDetails, error) {
	role, vendor, err := s.participant(ctx, o, id)
	if err != nil {
		return nil, err
	}

	from, to := o.Status, in.Status
	if from == to {
		return s.details(ctx, o)
	}
	if !domain.CanTransition(from, to) {
		return nil, ErrInvalidTransition.
			WithMessage(fmt.Sprintf("cannot move an order from %s to %s", from, to)).
			WithDetail("from", from).
			WithDetail("allowed", domain.NextStatuses(from))
	}
	if !domain.RoleMayTransition(role, to) {
		return nil, ErrForbidden.WithMessage(fmt.Sprintf("the %s may not set an order to %s", role, to))
	}

	now := s.clock()
	switch to {
	case domain.StatusPickedUp:
		if !pickupCodeValid(o, in.PickupCode, now) {
			return nil, ErrInvalidPickupCode
		}
	case domain.StatusCancelled:
		if in.Reason == "" {
			return nil, apperr.Validation("a reason is required to cancel an order")
		}
		if !domain.CancelAllowed(role, from) {
			return nil, ErrCancelNotAllowed.WithMessage(fmt.Sprintf("the %s can no longer cancel an order that is %s", role, from))
		}
	}

	updates := map[string]any{"status": to, "updated_at": now}
	switch to {
	case domain.StatusConfirmed:
		updates["confirmed_at"] = now
	case domain.StatusPickedUp:
		updates["picked_up_at"] = now
	case domain.StatusCompleted:
		updates["completed_at"] = now
	case domain.StatusCancelled:
		updates["cancelled_at"] = now
		updates["cancellation_reason"] = in.Reason
		updates["cancelled_by"] = role
	}
	change := &domain.StatusChange{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  id.ID(),
		ActorRole:  role,
		Reason:     in.Reason,
		CreatedAt:  now,
	}

	if err := repo.TransitionOrder(ctx, s.DB, o.ID, o.UpdatedAt, updates, change); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrConcurrentModification
		}
		return nil, errors.Wrap(err, "update order status")
	}

	applyTransition(o, to, role, in.Reason, now)
	observability.OrderTransition(string(from), string(to))
	log.Info().
		Str("order_id", o.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_role", role).
		Msg("order status changed")

	s.afterTransition(o, vendor, id, role, from, to)
	return s.details(ctx, o)
}

func applyTransition(o *domain.Order, to domain.OrderStatus, role, reason string, now time.Time) {
	o.Status = to
	o.UpdatedAt = now
	t := now
	switch to {
	case domain.StatusConfirmed:
		o.ConfirmedAt = &t
	case domain.StatusPickedUp:
		o.PickedUpAt = &t
	case domain.StatusCompleted:
		o.CompletedAt = &t
	case domain.StatusCancelled:
		r, by := reason, role
		o.CancelledAt = &t
		o.CancellationReason = &r
		o.CancelledBy = &by
	}
}

// afterTransition queues the system chat message and notifies the other
// party.
func (s *OrderService) afterTransition(o *domain.Order, vendor *domain.Vendor, id domain.Identity, role string, from, to domain.OrderStatus) {
	content := domain.StatusMessage(to, deref(o.CancellationReason))
	meta, _ := json.Marshal(map[string]any{
		"status_change": map[string]string{"from": string(from), "to": string(to)},
		"sender_role":   role,
	})
	orderID, sender := o.ID, id.ID()
	s.effects().Enqueue("order_status_message", func(ctx context.Context) error {
		return repo.CreateMessage(ctx, s.DB, &domain.Message{
			OrderID:    orderID,
			SenderID:   sender,
			SenderRole: role,
			Kind:       domain.MessageSystem,
			Content:    content,
			Metadata:   meta,
		})
	})

	recipient := o.OwnerID()
	if role == domain.RoleBuyer {
		recipient = ""
		if vendor != nil {
			recipient = vendor.OwnerID
		}
	}
	s.notify("notify_order_status", notify.Notification{
		RecipientID: recipient,
		Kind:        domain.NotifyStatusChange,
		Title:       notify.Title("order " + strings.ReplaceAll(string(to), "_", " ")),
		Body:        content,
		Data:        map[string]any{"order_id": orderID, "status": string(to)},
	})
}
