// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file covers guest sessions and the guest→user
// migration procedure.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// TouchGuestSession registers the guest id if unseen and bumps
// last_active_at otherwise, then returns the stored row.
func TouchGuestSession(ctx context.Context, db *gorm.DB, id string, now time.Time) (*domain.GuestSession, error) {
	g := &domain.GuestSession{ID: id, CreatedAt: now, LastActiveAt: now}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{"last_active_at": now}),
		}).
		Create(g).Error
	if err != nil {
		return nil, err
	}
	return GetGuestSession(ctx, db, id)
}

// GetGuestSession fetches a guest session, or ErrNotFound.
func GetGuestSession(ctx context.Context, db *gorm.DB, id string) (*domain.GuestSession, error) {
	var g domain.GuestSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// MigrateGuestData moves every order, order message and notification of
// guestID to userID and stamps the session as migrated, all in one
// transaction. A session that is already migrated (or missing) yields
// Success=false and nothing is changed.
func MigrateGuestData(ctx context.Context, db *gorm.DB, guestID, userID string, now time.Time) (domain.MigrationResult, error) {
	var res domain.MigrationResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the session first so a concurrent migration loses here.
		claim := tx.Model(&domain.GuestSession{}).
			Where("id = ? AND migrated_to IS NULL", guestID).
			Updates(map[string]any{"migrated_to": userID, "migrated_at": now})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			res = domain.MigrationResult{Success: false, Message: "guest session missing or already migrated"}
			return nil
		}

		orders := tx.Model(&domain.Order{}).
			Where("guest_id = ?", guestID).
			Updates(map[string]any{"buyer_id": userID, "guest_id": nil, "updated_at": now})
		if orders.Error != nil {
			return orders.Error
		}

		msgs := tx.Model(&domain.Message{}).
			Where("sender_id = ?", guestID).
			Update("sender_id", userID)
		if msgs.Error != nil {
			return msgs.Error
		}

		if err := tx.Model(&domain.Notification{}).
			Where("recipient_id = ?", guestID).
			Update("recipient_id", userID).Error; err != nil {
			return err
		}

		res = domain.MigrationResult{
			Success:          true,
			Message:          "guest data migrated",
			OrdersMigrated:   orders.RowsAffected,
			MessagesMigrated: msgs.RowsAffected,
		}
		return nil
	})
	if err != nil {
		return domain.MigrationResult{}, err
	}
	return res, nil
}
