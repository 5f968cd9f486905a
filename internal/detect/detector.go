// Package detect implements the stateless signature detector for
// injection-class attacks. Detection is a pure function over an ordered
// pattern table and an input string: same input and table, same result, no
// side effects. Creating records and requesting blocks on a match is the
// decision pipeline's job, never the detector's.
package detect

import (
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

// Match is the outcome of inspecting one input string.
type Match struct {
	Matched  bool
	Family   models.AttackType
	Severity models.Severity
	Pattern  string
}

// Detector matches untrusted input against a fixed ordered signature table.
type Detector struct {
	patterns []Pattern
}

// NewDetector returns a detector loaded with the default signature table.
func NewDetector() *Detector {
	return &Detector{patterns: defaultPatterns()}
}

// NewDetectorWithPatterns returns a detector over a caller-supplied table.
func NewDetectorWithPatterns(patterns []Pattern) *Detector {
	return &Detector{patterns: patterns}
}

// Inspect checks input against every signature in table order; the first
// matching pattern wins. Empty input is a non-match.
func (d *Detector) Inspect(input string) Match {
	if input == "" {
		return Match{}
	}
	for _, p := range d.patterns {
		if p.Regex.MatchString(input) {
			return Match{Matched: true, Family: p.Family, Severity: p.Severity, Pattern: p.Name}
		}
	}
	return Match{}
}

// InspectFamily checks input against only the signatures of one family.
func (d *Detector) InspectFamily(input string, family models.AttackType) Match {
	if input == "" {
		return Match{}
	}
	for _, p := range d.patterns {
		if p.Family != family {
			continue
		}
		if p.Regex.MatchString(input) {
			return Match{Matched: true, Family: p.Family, Severity: p.Severity, Pattern: p.Name}
		}
	}
	return Match{}
}
