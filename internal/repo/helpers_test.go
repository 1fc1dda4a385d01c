package repo

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// newRepoDB opens an isolated in-memory database with the full schema.
// foreign_keys is set through the DSN so every pooled connection enforces it.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: Now,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, buyer, guest *string) *domain.Order {
	t.Helper()
	now := Now()
	o := &domain.Order{
		ID:            uuid.NewString(),
		BuyerID:       buyer,
		GuestID:       guest,
		VendorID:      uuid.NewString(),
		Status:        domain.StatusPending,
		SubtotalCents: 1000,
		TotalCents:    1000,
		Currency:      "USD",
		PickupTime:    now.Add(time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Omit("Items").Create(o).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

func strp(s string) *string { return &s }
