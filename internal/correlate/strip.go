package correlate

import (
	"regexp"
	"strings"
)

// attributionLine marks the start of a quoted thread. Covers the common
// English and French client styles; unknown styles pass through untouched,
// which is safe because the worst case is showing the customer more text.
var attributionLine = regexp.MustCompile(`(?i)^(on .+ wrote\s*:|le .+ a écrit\s*:|de\s*:\s+.+|-{2,}\s*(original message|message d'origine)\s*-{2,}.*)$`)

// StripQuoted removes quoted reply-thread content from an email body so only
// the sender's own text remains. Lines prefixed with ">" are dropped, and
// everything below an attribution line ("On ... wrote:", "Le ... a écrit :")
// is cut.
func StripQuoted(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if attributionLine.MatchString(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
