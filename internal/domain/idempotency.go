package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency record states.
const (
	IdemProcessing = "processing"
	IdemCompleted  = "completed"
	IdemFailed     = "failed"
)

// IdempotencyRecord remembers the outcome of a mutating call keyed by
// (function_name, identity, key). The unique index is what makes "insert if
// absent" atomic across concurrent requests; the same key used by two
// callers names two unrelated records.
//
// ExpiresAt moves with the state: short while processing, the full TTL once
// completed. An expired record is treated as absent.
type IdempotencyRecord struct {
	ID           string         `gorm:"type:char(36);primaryKey"`
	FunctionName string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_function_key,priority:1"`
	Identity     string         `gorm:"type:varchar(96);not null;uniqueIndex:ux_idem_function_key,priority:2"`
	Key          string         `gorm:"type:varchar(200);not null;uniqueIndex:ux_idem_function_key,priority:3"`
	RequestHash  string         `gorm:"type:char(64);not null"`
	Status       string         `gorm:"type:varchar(16);not null;check:status IN ('processing','completed','failed')"`
	Response     datatypes.JSON
	Error        string         `gorm:"type:text"`
	ExpiresAt    time.Time      `gorm:"not null;index"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime:false"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyRecord) TableName() string { return "idempotency_keys" }

// Expired reports whether the record no longer counts at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }
