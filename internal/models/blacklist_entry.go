package models

import (
	"time"
)

// BlacklistEntry is a permanent IP block. Unlike transient blocks it has no
// expiry and is only lifted by an explicit unblock.
type BlacklistEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	IP        string    `json:"ip" gorm:"uniqueIndex"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
