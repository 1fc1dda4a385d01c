// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for orders, their
// line items and the status history.
//
// Orders are written in two steps (header, then items) by the creation
// pipeline; status changes go through TransitionOrder, a conditional update
// keyed on updated_at that reports ErrConflict when the version moved.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// CreateOrderHeader inserts the order row without its items. A unique
// violation (idempotency key already used) is returned as ErrDuplicate.
func CreateOrderHeader(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	err := db.WithContext(ctx).Omit(clause.Associations).Create(o).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// CreateOrderItems inserts all line items of an order.
func CreateOrderItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, 50).Error
}

// DeleteOrder removes an order; items and messages cascade.
func DeleteOrder(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Order{}).Error
}

// GetOrder loads an order with its items, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// GetOrderByIdempotencyKey returns the order created with key, or ErrNotFound.
func GetOrderByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC, id ASC") }).
		Where("idempotency_key = ?", key).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// UpdateOrderIfUnchanged applies updates only while the row still carries
// expectedUpdatedAt. updates must include the new updated_at.
func UpdateOrderIfUnchanged(ctx context.Context, db *gorm.DB, id string, expectedUpdatedAt time.Time, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND updated_at = ?", id, expectedUpdatedAt).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// TransitionOrder performs the optimistic status update and records the
// history row in a single transaction.
func TransitionOrder(ctx context.Context, db *gorm.DB, id string, expectedUpdatedAt time.Time, updates map[string]any, change *domain.StatusChange) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := UpdateOrderIfUnchanged(ctx, tx, id, expectedUpdatedAt, updates); err != nil {
			return err
		}
		return tx.Create(change).Error
	})
}

// ListStatusHistory returns the transitions of an order, oldest first.
func ListStatusHistory(ctx context.Context, db *gorm.DB, orderID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
