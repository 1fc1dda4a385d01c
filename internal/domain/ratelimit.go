package domain

import "time"

// RateLimitRequest is one counted attempt against a (function, identity)
// window.
type RateLimitRequest struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	FunctionName string    `gorm:"type:varchar(64);not null;index:idx_rate_limit_window,priority:1"`
	Identity     string    `gorm:"type:varchar(96);not null;index:idx_rate_limit_window,priority:2"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false;index:idx_rate_limit_window,priority:3;index"`
}

// TableName implements the GORM tabler interface.
func (RateLimitRequest) TableName() string { return "rate_limit_requests" }
