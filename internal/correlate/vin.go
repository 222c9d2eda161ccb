package correlate

import (
	"regexp"
	"strings"
)

// VIN alphabet excludes I, O and Q, which are never issued to avoid
// confusion with 1 and 0.
var (
	vinBare    = regexp.MustCompile(`(?i)\b[A-HJ-NPR-Z0-9]{17}\b`)
	vinLabeled = regexp.MustCompile(`(?i)\bVIN\s*:?\s*([A-HJ-NPR-Z0-9]{17})\b`)
)

// ExtractVIN searches subject then body for a bare 17-character VIN, then
// for a "VIN:"-labeled one. The result is normalized to uppercase; "" means
// no VIN was found.
func ExtractVIN(subject, body string) string {
	for _, text := range []string{subject, body} {
		if m := vinBare.FindString(text); m != "" {
			return strings.ToUpper(m)
		}
	}
	for _, text := range []string{subject, body} {
		if m := vinLabeled.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// IsVIN reports whether s is a well-formed 17-character VIN.
func IsVIN(s string) bool {
	return len(s) == 17 && vinBare.FindString(s) == s
}
