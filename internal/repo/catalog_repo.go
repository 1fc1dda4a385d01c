// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds catalog lookups (vendors, dishes) and the
// public user profile used for display names.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// GetVendor fetches a vendor by ID, or ErrNotFound.
func GetVendor(ctx context.Context, db *gorm.DB, id string) (*domain.Vendor, error) {
	var v domain.Vendor
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// ListAvailableDishes resolves ids in one query, scoped to the vendor and
// to available dishes. Missing or unavailable ids are simply absent from
// the result.
func ListAvailableDishes(ctx context.Context, db *gorm.DB, vendorID string, ids []string) ([]domain.Dish, error) {
	var out []domain.Dish
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Where("vendor_id = ? AND available = ? AND id IN ?", vendorID, true, ids).
		Find(&out).Error
	return out, err
}

// GetUser fetches a public user profile, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
