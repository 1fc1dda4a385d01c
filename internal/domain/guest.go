package domain

import "time"

// GuestSession is the placeholder identity for unauthenticated ordering.
// Once MigratedTo is set the session's data belongs to that user and the
// guest id can no longer act.
type GuestSession struct {
	ID           string     `json:"id"             gorm:"type:varchar(96);primaryKey"`
	CreatedAt    time.Time  `json:"created_at"     gorm:"not null"`
	LastActiveAt time.Time  `json:"last_active_at" gorm:"not null"`
	MigratedTo   *string    `json:"migrated_to,omitempty" gorm:"type:varchar(64);index"`
	MigratedAt   *time.Time `json:"migrated_at,omitempty"`
}

// TableName returns the database table name for GuestSession.
func (GuestSession) TableName() string { return "guest_sessions" }

// Migrated reports whether the session was merged into a user.
func (g *GuestSession) Migrated() bool { return g.MigratedTo != nil }

// MigrationResult is what the guest→user re-assignment procedure reports.
type MigrationResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	OrdersMigrated   int64  `json:"orders_migrated"`
	MessagesMigrated int64  `json:"messages_migrated"`
}
