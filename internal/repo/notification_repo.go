package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// CreateNotification stores an inbox entry, filling ID and CreatedAt.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = Now()
	}
	return db.WithContext(ctx).Create(n).Error
}

// ListNotifications returns the newest inbox entries of a recipient.
func ListNotifications(ctx context.Context, db *gorm.DB, recipientID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
