package models

import (
	"time"
)

// SessionEvent is an append-only record of a successful authentication,
// written by the decision pipeline and consumed by the profile recompute
// batch. Rows past the retention window are purged.
type SessionEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"index"`
	SourceIP  string    `json:"source_ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
