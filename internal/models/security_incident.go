package models

import (
	"time"
)

// IncidentStatus tracks the ops lifecycle of an incident. Detectors never
// touch it; only a human action moves an incident out of "open".
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentIgnored       IncidentStatus = "ignored"
)

// SecurityIncident is raised by the decision pipeline when a finding crosses
// the alerting threshold. AffectedIdentifiers is a JSON array of the IPs and
// account ids involved.
type SecurityIncident struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	UUID                string         `json:"uuid" gorm:"uniqueIndex"`
	Type                string         `json:"type" gorm:"index"`
	Severity            Severity       `json:"severity"`
	Description         string         `json:"description" gorm:"type:text"`
	AffectedIdentifiers string         `json:"affected_identifiers" gorm:"type:text"`
	Status              IncidentStatus `json:"status" gorm:"index;default:'open'"`
	CreatedAt           time.Time      `json:"created_at" gorm:"index"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
}

// CanTransition reports whether the incident may move to the given status.
// Resolved and ignored are terminal.
func (i *SecurityIncident) CanTransition(to IncidentStatus) bool {
	switch i.Status {
	case IncidentOpen:
		return to == IncidentInvestigating || to == IncidentResolved || to == IncidentIgnored
	case IncidentInvestigating:
		return to == IncidentResolved || to == IncidentIgnored
	default:
		return false
	}
}
