package models

import (
	"time"
)

// AuditEntry records every blocking or challenge decision the engine takes so
// it can be audited and surfaced in the ops UI.
type AuditEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	Actor     string    `json:"actor"`  // "pipeline" or the ops user for manual actions
	Action    string    `json:"action"` // e.g. block, challenge, blacklist, unblock
	SourceIP  string    `json:"source_ip" gorm:"index"`
	Reason    string    `json:"reason"`
	Details   string    `json:"details" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
