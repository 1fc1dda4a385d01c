// Package services – MessageService
//
// This file implements MessageService, the read side of an order's chat
// thread. Messages are written by the order pipeline (opening message,
// status-change system messages); participants page through them here.
//
// Observability: methods are OpenTelemetry-instrumented with the order id
// and pagination parameters.
package services

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
	"github.com/tbourn/go-pickup-backend/internal/utils"
)

// Page size bounds for message listings.
const (
	DefaultMessagePageSize = 20
	MaxMessagePageSize     = 100
)

// MessageService lists order chat messages for participants.
type MessageService struct {
	DB *gorm.DB
}

// ListPage returns one page of the order's thread (oldest first) and the
// total message count.
func (s *MessageService) ListPage(ctx context.Context, id domain.Identity, orderID string, page, pageSize int) (items []domain.Message, total int64, err error) {
	ctx, span := observability.StartSpan(ctx, "services/MessageService", "ListPage",
		attribute.String("order.id", orderID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer func() { observability.EndSpan(span, err) }()

	page, pageSize, offset := utils.PageBounds(page, pageSize, DefaultMessagePageSize, MaxMessagePageSize)

	if err := s.authorize(ctx, id, orderID); err != nil {
		return nil, 0, err
	}

	total, err = repo.CountMessages(ctx, s.DB, orderID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err = repo.ListMessagesPage(ctx, s.DB, orderID, offset, pageSize)
	return items, total, err
}

// ETag returns a weak validator for the thread that changes whenever a
// message is added or edited.
func (s *MessageService) ETag(ctx context.Context, id domain.Identity, orderID string) (string, error) {
	if err := s.authorize(ctx, id, orderID); err != nil {
		return "", err
	}
	count, maxTS, err := repo.MessagesStats(ctx, s.DB, orderID)
	if err != nil {
		return "", err
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixMicro()
	}
	return fmt.Sprintf(`W/"messages:%s:%d:%d"`, orderID, count, ts), nil
}

func (s *MessageService) authorize(ctx context.Context, id domain.Identity, orderID string) error {
	if id.IsZero() {
		return ErrUnauthorized
	}
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		return errors.Wrap(err, "load order")
	}
	_, _, err = orderParticipant(ctx, s.DB, o, id)
	return err
}
