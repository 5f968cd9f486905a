package models

import (
	"time"
)

// AttackType identifies the injection family a signature match belongs to.
type AttackType string

const (
	AttackSQLInjection     AttackType = "sql_injection"
	AttackCommandInjection AttackType = "command_injection"
	AttackXSS              AttackType = "xss"
	AttackPathTraversal    AttackType = "path_traversal"
	AttackLDAPInjection    AttackType = "ldap_injection"
)

// IntrusionAttempt records a positive signature match against untrusted input.
// Rows are immutable once written and purged after the retention window.
type IntrusionAttempt struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UUID      string     `json:"uuid" gorm:"uniqueIndex"`
	SourceIP  string     `json:"source_ip" gorm:"index"`
	AccountID string     `json:"account_id,omitempty" gorm:"index"`
	Type      AttackType `json:"attack_type"`
	Severity  Severity   `json:"severity"`
	Evidence  string     `json:"evidence" gorm:"type:text"` // sanitized excerpt of the matched input
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
}
