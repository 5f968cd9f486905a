package models

// Severity grades a finding by blast radius.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is the same or a more severe grade than min.
// Unknown severities compare below "low".
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Valid reports whether s is one of the known grades.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}
