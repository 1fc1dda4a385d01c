// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user reports.
//
// Duplicate detection is time-windowed (one report per pair per day) so it
// is a query, not a unique index; the service layer turns a hit into
// services.ErrDuplicateReport.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// CreateReport inserts a report, filling ID and CreatedAt.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = Now()
	}
	return db.WithContext(ctx).Create(r).Error
}

// RecentReportExists reports whether reporter already reported reported
// at or after since.
func RecentReportExists(ctx context.Context, db *gorm.DB, reporterID, reportedID string, since time.Time) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("reporter_id = ? AND reported_user_id = ? AND created_at >= ?", reporterID, reportedID, since).
		Count(&n).Error
	return n > 0, err
}
