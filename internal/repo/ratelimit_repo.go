// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the request log behind the sliding-window
// rate limiter.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// RateLimitWindow counts logged requests for (function, identity) with
// created_at >= since and returns the oldest of them (zero when none).
func RateLimitWindow(ctx context.Context, db *gorm.DB, function, identity string, since time.Time) (count int64, oldest time.Time, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).
			Model(&domain.RateLimitRequest{}).
			Where("function_name = ? AND identity = ? AND created_at >= ?", function, identity, since)
	}
	if err = q().Count(&count).Error; err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}
	var row struct {
		CreatedAt time.Time
	}
	if err = q().Select("created_at").Order("created_at ASC").Limit(1).Scan(&row).Error; err != nil {
		return 0, time.Time{}, err
	}
	return count, row.CreatedAt, nil
}

// RecordRateLimitRequest appends one attempt to the log.
func RecordRateLimitRequest(ctx context.Context, db *gorm.DB, function, identity string, at time.Time) error {
	return db.WithContext(ctx).Create(&domain.RateLimitRequest{
		FunctionName: function,
		Identity:     identity,
		CreatedAt:    at,
	}).Error
}

// DeleteRateLimitRequestsBefore removes log rows older than cutoff.
func DeleteRateLimitRequestsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.RateLimitRequest{})
	return res.RowsAffected, res.Error
}
