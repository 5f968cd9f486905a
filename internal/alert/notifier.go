// Package alert forwards high-severity incidents to an external sink. The
// engine calls it fire-and-forget: delivery failure is logged, never
// propagated back into a verdict.
package alert

import (
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/logger"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

// Notifier sends incident alerts through a shoutrrr URL (discord://,
// slack://, smtp://, ...). An empty URL disables external delivery.
type Notifier struct {
	url         string
	minSeverity models.Severity
	send        func(url, message string) error
}

// New returns a notifier for the given shoutrrr URL.
func New(url string, minSeverity models.Severity) *Notifier {
	if !minSeverity.Valid() {
		minSeverity = models.SeverityHigh
	}
	return &Notifier{url: url, minSeverity: minSeverity, send: shoutrrr.Send}
}

// IncidentRaised delivers an alert for the incident when its severity meets
// the configured floor. Delivery happens on a separate goroutine.
func (n *Notifier) IncidentRaised(incident models.SecurityIncident) {
	if n.url == "" || !incident.Severity.AtLeast(n.minSeverity) {
		return
	}

	msg := fmt.Sprintf("[%s] %s incident: %s (affected: %s)",
		incident.Severity, incident.Type, incident.Description, incident.AffectedIdentifiers)

	go func() {
		if err := n.send(n.url, msg); err != nil {
			logger.WithFields(map[string]interface{}{
				"incident": incident.UUID,
				"error":    err.Error(),
			}).Warn("incident alert delivery failed")
		}
	}()
}
