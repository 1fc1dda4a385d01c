// Package domain defines the persistence models and pure business rules of
// the pickup-order backend. The GORM-mapped types here are shared by the
// repository and service layers; the order status graph lives in status.go.
package domain

import "time"

// Order is a pickup order placed by exactly one owner: a registered buyer
// or a guest session. Money fields are integer minor units.
//
// UpdatedAt is the optimistic-concurrency token. It is written explicitly
// by the service clock on every mutation and never touched by GORM.
type Order struct {
	ID       string      `json:"id"        gorm:"type:char(36);primaryKey"`
	BuyerID  *string     `json:"buyer_id,omitempty" gorm:"type:varchar(64);index:idx_orders_buyer;check:chk_orders_owner,(buyer_id IS NULL) <> (guest_id IS NULL)"`
	GuestID  *string     `json:"guest_id,omitempty" gorm:"type:varchar(96);index:idx_orders_guest"`
	VendorID string      `json:"vendor_id" gorm:"type:char(36);not null;index:idx_orders_vendor"`
	Status   OrderStatus `json:"status"    gorm:"type:varchar(16);not null;index;check:status IN ('pending','confirmed','preparing','ready','picked_up','completed','cancelled')"`

	SubtotalCents int64  `json:"subtotal_cents" gorm:"not null;check:subtotal_cents >= 0"`
	TaxCents      int64  `json:"tax_cents"      gorm:"not null;default:0;check:tax_cents >= 0"`
	FeeCents      int64  `json:"fee_cents"      gorm:"not null;default:0;check:fee_cents >= 0"`
	TipCents      int64  `json:"tip_cents"      gorm:"not null;default:0;check:tip_cents >= 0"`
	TotalCents    int64  `json:"total_cents"    gorm:"not null;check:total_cents >= 0"`
	Currency      string `json:"currency"       gorm:"type:char(3);not null"`

	PickupTime          time.Time  `json:"pickup_time"            gorm:"not null"`
	SpecialInstructions string     `json:"special_instructions"   gorm:"type:text"`
	PickupCode          *string    `json:"pickup_code,omitempty"  gorm:"type:char(6)"`
	PickupCodeExpiresAt *time.Time `json:"pickup_code_expires_at,omitempty"`
	IdempotencyKey      *string    `json:"-"                      gorm:"type:varchar(200);uniqueIndex:ux_orders_idempotency_key"`

	CancellationReason *string    `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"        gorm:"type:varchar(16)"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	PickedUpAt         *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;autoUpdateTime:false"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OwnerID returns the registered buyer id or, for guest orders, the guest id.
func (o *Order) OwnerID() string {
	if o.BuyerID != nil {
		return *o.BuyerID
	}
	if o.GuestID != nil {
		return *o.GuestID
	}
	return ""
}

// IsOwnedBy reports whether id is the order's buyer.
func (o *Order) IsOwnedBy(id Identity) bool {
	if id.IsGuest() {
		return o.GuestID != nil && *o.GuestID == id.GuestID
	}
	return id.UserID != "" && o.BuyerID != nil && *o.BuyerID == id.UserID
}

// OrderItem is an immutable line of an order. Prices are snapshots taken at
// creation and never re-read from the catalog.
type OrderItem struct {
	ID                  string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	OrderID             string    `json:"order_id"             gorm:"type:char(36);not null;index"`
	DishID              string    `json:"dish_id"              gorm:"type:char(36);not null"`
	DishName            string    `json:"dish_name"            gorm:"type:varchar(255);not null"`
	Quantity            int       `json:"quantity"             gorm:"not null;check:quantity BETWEEN 1 AND 99"`
	UnitPriceCents      int64     `json:"unit_price_cents"     gorm:"not null;check:unit_price_cents >= 0"`
	LineTotalCents      int64     `json:"line_total_cents"     gorm:"not null"`
	SpecialInstructions string    `json:"special_instructions,omitempty" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// StatusChange is an audit row written with every committed transition.
type StatusChange struct {
	ID         string      `json:"id"          gorm:"type:char(36);primaryKey"`
	OrderID    string      `json:"order_id"    gorm:"type:char(36);not null;index:idx_status_history_order,priority:1"`
	FromStatus OrderStatus `json:"from_status" gorm:"type:varchar(16);not null"`
	ToStatus   OrderStatus `json:"to_status"   gorm:"type:varchar(16);not null"`
	ChangedBy  string      `json:"changed_by"  gorm:"type:varchar(96);not null"`
	ActorRole  string      `json:"actor_role"  gorm:"type:varchar(16);not null"`
	Reason     string      `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt  time.Time   `json:"created_at"  gorm:"index:idx_status_history_order,priority:2"`
}

// TableName returns the database table name for StatusChange.
func (StatusChange) TableName() string { return "order_status_history" }
