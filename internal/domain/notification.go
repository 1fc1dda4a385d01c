package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app inbox entry for a user or guest.
type Notification struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string         `json:"recipient_id" gorm:"type:varchar(96);not null;index:idx_notifications_recipient,priority:1"`
	Kind        string         `json:"kind"         gorm:"type:varchar(32);not null"`
	Title       string         `json:"title"        gorm:"type:varchar(255);not null"`
	Body        string         `json:"body"         gorm:"type:text;not null"`
	Data        datatypes.JSON `json:"data,omitempty"`
	Read        bool           `json:"read"         gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"   gorm:"index:idx_notifications_recipient,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Notification kinds.
const (
	NotifyNewOrder     = "new_order"
	NotifyStatusChange = "order_status"
	NotifyPickupCode   = "pickup_code"
)
