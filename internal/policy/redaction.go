package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	secretPattern     = regexp.MustCompile(`\b(?:AIza[0-9A-Za-z_\-]{20,}|sk-[0-9A-Za-z_\-]{16,})\b`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	nationalIDPattern = regexp.MustCompile(`\b\d[ -]?\d{4}[ -]?\d{5}[ -]?\d{2}[ -]?\d\b`)
	phonePattern      = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern       = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: the more specific digit patterns run before the phone pattern.
var rules = []rule{
	{secretPattern, "[REDACTED_SECRET]"},
	{emailPattern, "[REDACTED_EMAIL]"},
	{nationalIDPattern, "[REDACTED_ID]"},
	{cardPattern, "[REDACTED_CARD]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks credentials and common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// Excerpt returns at most maxRunes of the redacted input, for debug log lines.
func Excerpt(input string, maxRunes int) string {
	out, _ := RedactPII(strings.TrimSpace(input))
	if maxRunes <= 0 || utf8.RuneCountInString(out) <= maxRunes {
		return out
	}
	return string([]rune(out)[:maxRunes]) + "…"
}

// MaskSecret keeps the last four characters of a credential.
func MaskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return fmt.Sprintf("****%s", secret[len(secret)-4:])
}
