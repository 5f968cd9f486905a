package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))

	// Unknown grades never clear a floor above "low".
	assert.False(t, Severity("bogus").AtLeast(SeverityMedium))
	assert.True(t, Severity("bogus").AtLeast(SeverityLow))
}

func TestSeverity_Valid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Severity("").Valid())
	assert.False(t, Severity("urgent").Valid())
}

func TestSecurityIncident_CanTransition(t *testing.T) {
	cases := []struct {
		from IncidentStatus
		to   IncidentStatus
		ok   bool
	}{
		{IncidentOpen, IncidentInvestigating, true},
		{IncidentOpen, IncidentResolved, true},
		{IncidentOpen, IncidentIgnored, true},
		{IncidentInvestigating, IncidentResolved, true},
		{IncidentInvestigating, IncidentIgnored, true},
		{IncidentInvestigating, IncidentOpen, false},
		{IncidentResolved, IncidentOpen, false},
		{IncidentResolved, IncidentInvestigating, false},
		{IncidentIgnored, IncidentResolved, false},
	}
	for _, tc := range cases {
		incident := SecurityIncident{Status: tc.from}
		assert.Equal(t, tc.ok, incident.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestEncodeDecodeSet(t *testing.T) {
	raw := EncodeSet([]string{"203.0.113.5", "198.51.100.9"})
	profile := BehaviorProfile{KnownIPs: raw}

	set := profile.KnownIPSet()
	assert.Len(t, set, 2)
	assert.Contains(t, set, "203.0.113.5")

	assert.Equal(t, "[]", EncodeSet(nil))
	assert.Empty(t, (&BehaviorProfile{}).KnownIPSet())

	// A corrupted column degrades to an empty set instead of failing.
	broken := BehaviorProfile{KnownUserAgents: "{not json"}
	assert.Empty(t, broken.KnownUserAgentSet())
}
