package correlate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tokenLabeled matches a request token preceded by one of the reference
// labels used in outbound quote-request emails. Garages reply in French or
// English, so both label spellings are accepted.
var tokenLabeled = regexp.MustCompile(`(?i)(?:reference\s*id|référence|ref)\s*:?\s*(req_[A-Za-z0-9_]+)`)

// ExtractToken finds a labeled request token anywhere in text, including
// inside quoted reply content. Returns "" when no token is present.
func ExtractToken(text string) string {
	m := tokenLabeled.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// NewToken returns a fresh request token of the form
// req_<unix-millis>_<suffix>. The millisecond timestamp is what later lets
// an inbound reply be matched back to its service request.
func NewToken(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), suffix)
}

// TokenTime parses the creation timestamp embedded in a request token.
// ok is false for tokens that do not carry a plausible millisecond epoch.
func TokenTime(token string) (time.Time, bool) {
	parts := strings.SplitN(token, "_", 3)
	if len(parts) < 2 || parts[0] != "req" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
