package util

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]+`)

// SanitizeForLog removes control characters and newlines from user content
// before it is logged or stored as evidence.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return controlChars.ReplaceAllString(s, " ")
}
