package domain

import "time"

// Report reasons accepted for user reports.
var ReportReasons = []string{"inappropriate_behavior", "fraud", "harassment", "spam", "other"}

// Report priorities.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Report is a moderation report filed by one user against another.
type Report struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	ReporterID     string    `json:"reporter_id"      gorm:"type:varchar(64);not null;index:idx_reports_pair,priority:1"`
	ReportedUserID string    `json:"reported_user_id" gorm:"type:varchar(64);not null;index:idx_reports_pair,priority:2"`
	OrderID        *string   `json:"order_id,omitempty" gorm:"type:char(36)"`
	Reason         string    `json:"reason"           gorm:"type:varchar(32);not null"`
	Description    string    `json:"description"      gorm:"type:text;not null"`
	Priority       string    `json:"priority"         gorm:"type:varchar(16);not null;check:priority IN ('normal','high')"`
	Status         string    `json:"status"           gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt      time.Time `json:"created_at"       gorm:"index:idx_reports_pair,priority:3"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "user_reports" }

// ValidReportReason reports whether r is an accepted reason.
func ValidReportReason(r string) bool {
	for _, v := range ReportReasons {
		if v == r {
			return true
		}
	}
	return false
}

// ReportPriority escalates harassment and fraud.
func ReportPriority(reason string) string {
	switch reason {
	case "harassment", "fraud":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
