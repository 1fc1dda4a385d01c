package domain

import "time"

// Vendor is a food seller. OwnerID is the registered user who operates it.
type Vendor struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerID      string    `json:"owner_id"      gorm:"type:varchar(64);not null;index"`
	BusinessName string    `json:"business_name" gorm:"type:varchar(255);not null"`
	Address      string    `json:"address"       gorm:"type:text"`
	IsActive     bool      `json:"is_active"     gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Vendor.
func (Vendor) TableName() string { return "vendors" }

// Dish is a menu entry. PriceCents is read once at order time and copied
// into the order item.
type Dish struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	VendorID   string    `json:"vendor_id"   gorm:"type:char(36);not null;index:idx_dishes_vendor_available,priority:1"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	PriceCents int64     `json:"price_cents" gorm:"not null;check:price_cents >= 0"`
	Available  bool      `json:"available"   gorm:"not null;default:true;index:idx_dishes_vendor_available,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Dish.
func (Dish) TableName() string { return "dishes" }

// User is the public profile of a registered user.
type User struct {
	ID          string    `json:"id"           gorm:"type:varchar(64);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
