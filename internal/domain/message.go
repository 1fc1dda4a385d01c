package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Message kinds.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// Message is one entry of an order's chat thread. Status transitions append
// system-authored messages whose Metadata records the change, e.g.
// {"status_change":{"from":"pending","to":"confirmed"},"sender_role":"vendor"}.
//
// Fields:
//   - SenderID: registered user id or guest id of the author.
//   - SenderRole: "buyer", "vendor" or "system".
//   - Kind: "text" or "system".
type Message struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	OrderID    string         `json:"order_id"    gorm:"type:char(36);not null;index:idx_order_msgs,priority:1"`
	SenderID   string         `json:"sender_id"   gorm:"type:varchar(96);not null;index"`
	SenderRole string         `json:"sender_role" gorm:"type:varchar(16);not null;check:sender_role IN ('buyer','vendor','system')"`
	Kind       string         `json:"kind"        gorm:"type:varchar(16);not null;default:'text'"`
	Content    string         `json:"content"     gorm:"type:text;not null"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"  gorm:"index:idx_order_msgs,priority:2"`
	UpdatedAt  time.Time      `json:"updated_at"`

	Order Order `json:"-" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "order_messages" }
