package detect

import (
	"regexp"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
)

// Pattern couples a compiled signature with its attack family. Severity is
// fixed per family and reflects blast radius, not exploit difficulty: SQL and
// command injection reach data and hosts, the rest reach sessions and files.
type Pattern struct {
	Name     string
	Regex    *regexp.Regexp
	Family   models.AttackType
	Severity models.Severity
}

// familySeverity maps each attack family to its fixed severity grade.
var familySeverity = map[models.AttackType]models.Severity{
	models.AttackSQLInjection:     models.SeverityCritical,
	models.AttackCommandInjection: models.SeverityCritical,
	models.AttackXSS:              models.SeverityHigh,
	models.AttackPathTraversal:    models.SeverityHigh,
	models.AttackLDAPInjection:    models.SeverityHigh,
}

type patternDef struct {
	name   string
	expr   string
	family models.AttackType
}

// defaultDefs is the ordered signature table. Order matters: the first match
// wins, so the critical families are listed first.
var defaultDefs = []patternDef{
	// SQL injection
	{"sql_quote_boolean", `(?i)('|%27)\s*(or|and)\s*('|%27)?\s*[0-9]`, models.AttackSQLInjection},
	{"sql_union_select", `(?i)\bunion\s+(all\s+)?select\b`, models.AttackSQLInjection},
	{"sql_statement_pair", `(?i)\b(select|insert|update|delete|drop|truncate|alter)\b[\s\S]*\b(from|into|table|where|set)\b`, models.AttackSQLInjection},
	{"sql_stacked_query", `(?i);\s*(drop|delete|insert|update|shutdown)\b`, models.AttackSQLInjection},
	{"sql_time_probe", `(?i)\b(sleep|benchmark|pg_sleep)\s*\(|\bwaitfor\s+delay\b`, models.AttackSQLInjection},
	{"sql_comment_terminator", `(?i)('|%27)\s*(--|#|/\*)`, models.AttackSQLInjection},

	// Command injection
	{"cmd_chained_binary", `(?i)(;|\||&&|%3b|%7c)\s*(cat|ls|id|pwd|whoami|rm|wget|curl|nc|netcat|bash|sh|python|perl|powershell|cmd)\b`, models.AttackCommandInjection},
	{"cmd_substitution", "\\$\\([^)]*\\)|`[^`]+`", models.AttackCommandInjection},
	{"cmd_shell_path", `(?i)/bin/(ba|da|z)?sh\b`, models.AttackCommandInjection},

	// Cross-site scripting
	{"xss_script_tag", `(?i)<\s*script[^>]*>`, models.AttackXSS},
	{"xss_javascript_uri", `(?i)javascript\s*:`, models.AttackXSS},
	{"xss_event_handler", `(?i)\bon(error|load|click|mouseover|focus|submit)\s*=`, models.AttackXSS},
	{"xss_embed_tag", `(?i)<\s*(iframe|object|embed|svg)\b`, models.AttackXSS},
	{"xss_dom_sink", `(?i)document\s*\.\s*(cookie|write)|window\s*\.\s*location`, models.AttackXSS},

	// Path traversal
	{"path_dotdot", `\.\.(/|\\)`, models.AttackPathTraversal},
	{"path_dotdot_encoded", `(?i)(%2e%2e(%2f|%5c|/)|\.\.%2f|\.\.%5c)`, models.AttackPathTraversal},
	{"path_sensitive_file", `(?i)(/etc/(passwd|shadow)|boot\.ini|win\.ini|windows\\system32)`, models.AttackPathTraversal},

	// LDAP injection
	{"ldap_wildcard_break", `\*\s*\)\s*\(\s*[|&]`, models.AttackLDAPInjection},
	{"ldap_filter_conjunction", `\(\s*[|&]\s*\(\s*\w+\s*=`, models.AttackLDAPInjection},
	{"ldap_wildcard_filter", `\(\s*\w+\s*=\s*\*\s*\)`, models.AttackLDAPInjection},
}

// defaultPatterns compiles the signature table once. regexp.MustCompile is
// safe here: the table is fixed at build time and covered by tests.
func defaultPatterns() []Pattern {
	out := make([]Pattern, 0, len(defaultDefs))
	for _, d := range defaultDefs {
		out = append(out, Pattern{
			Name:     d.name,
			Regex:    regexp.MustCompile(d.expr),
			Family:   d.family,
			Severity: familySeverity[d.family],
		})
	}
	return out
}
