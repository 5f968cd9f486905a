package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForLog(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "wireless mouse", "wireless mouse"},
		{"crlf injection", "user\r\nFAKE LOG ENTRY", "user FAKE LOG ENTRY"},
		{"newline", "line one\nline two", "line one line two"},
		{"control chars", "a\x00b\x1Fc", "a b c"},
		{"tab run collapses", "a\t\t\tb", "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeForLog(tc.in))
		})
	}
}
