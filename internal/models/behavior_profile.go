package models

import (
	"encoding/json"
	"time"
)

// BehaviorProfile is the per-account baseline consulted by the anomaly
// detector. KnownIPs and KnownUserAgents are JSON arrays recomputed by the
// batch job from recent session history; the request path only reads them.
// Updates replace the whole row so readers never see a half-written profile.
type BehaviorProfile struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	AccountID         string    `json:"account_id" gorm:"uniqueIndex"`
	KnownIPs          string    `json:"known_ips" gorm:"type:text"`
	KnownUserAgents   string    `json:"known_user_agents" gorm:"type:text"`
	TypicalIntervalMs int64     `json:"typical_interval_ms"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// KnownIPSet decodes KnownIPs into a membership set. A malformed or empty
// column decodes to an empty set rather than an error; a degraded profile
// must never abort scoring.
func (p *BehaviorProfile) KnownIPSet() map[string]struct{} {
	return decodeSet(p.KnownIPs)
}

// KnownUserAgentSet decodes KnownUserAgents into a membership set.
func (p *BehaviorProfile) KnownUserAgentSet() map[string]struct{} {
	return decodeSet(p.KnownUserAgents)
}

func decodeSet(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	if raw == "" {
		return set
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return set
	}
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// EncodeSet serializes a set of strings for storage in a profile column.
func EncodeSet(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
