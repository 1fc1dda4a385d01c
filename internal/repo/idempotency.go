// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for idempotency
// records.
//
// Insert-if-absent is a plain INSERT guarded by the unique index on
// (function_name, identity, key): the loser of a race gets ErrDuplicate and must read
// the winner's row. Every later state change is a conditional update.
package repo

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// CreateIdempotency inserts rec and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, rec *domain.IdempotencyRecord) error {
	err := db.WithContext(ctx).Create(rec).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetIdempotency returns the record for (function, identity, key)
// regardless of expiry, or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, function, identity, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := db.WithContext(ctx).
		Where("function_name = ? AND identity = ? AND key = ?", function, identity, key).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// ReclaimIdempotency turns an expired or failed record back into a fresh
// processing claim. It only succeeds if prev is still exactly what the
// caller read; otherwise ErrConflict.
func ReclaimIdempotency(ctx context.Context, db *gorm.DB, prev *domain.IdempotencyRecord, requestHash string, expiresAt, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("id = ? AND status = ? AND updated_at = ?", prev.ID, prev.Status, prev.UpdatedAt).
		Updates(map[string]any{
			"request_hash": requestHash,
			"status":       domain.IdemProcessing,
			"response":     nil,
			"error":        "",
			"expires_at":   expiresAt,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// CompleteIdempotency stores the response and marks the record completed.
func CompleteIdempotency(ctx context.Context, db *gorm.DB, function, identity, key string, response datatypes.JSON, expiresAt, now time.Time) error {
	return finishIdempotency(ctx, db, function, identity, key, map[string]any{
		"status":     domain.IdemCompleted,
		"response":   response,
		"error":      "",
		"expires_at": expiresAt,
		"updated_at": now,
	})
}

// FailIdempotency marks the record failed so the next attempt may run.
func FailIdempotency(ctx context.Context, db *gorm.DB, function, identity, key, reason string, now time.Time) error {
	return finishIdempotency(ctx, db, function, identity, key, map[string]any{
		"status":     domain.IdemFailed,
		"error":      reason,
		"updated_at": now,
	})
}

func finishIdempotency(ctx context.Context, db *gorm.DB, function, identity, key string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("function_name = ? AND identity = ? AND key = ? AND status = ?", function, identity, key, domain.IdemProcessing).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredIdempotency purges every record whose expiry has passed.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
