package models

import (
	"time"
)

// AnomalyDetection records a behavioral deviation found at login/session time.
// Anomalies holds a JSON array of named deviation flags (e.g. "new_ip").
// Rows are immutable once written.
type AnomalyDetection struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UUID       string    `json:"uuid" gorm:"uniqueIndex"`
	AccountID  string    `json:"account_id" gorm:"index"`
	SourceIP   string    `json:"source_ip"`
	Score      int       `json:"score"`
	Anomalies  string    `json:"anomalies" gorm:"type:text"`
	Risk       Severity  `json:"risk"`
	DetectedAt time.Time `json:"detected_at" gorm:"index"`
}
