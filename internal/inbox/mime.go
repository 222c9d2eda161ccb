package inbox

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlDropBlocks = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	htmlLineBreaks = regexp.MustCompile(`(?i)<\s*(?:br\s*/?|/p|/div|/tr|/li|/h[1-6])\s*>`)
	htmlAnyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	blankLineRuns  = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText reduces an HTML email body to plain text good enough for
// correlation and quote extraction. Block-level closings become newlines so
// amounts and reference lines keep their own lines.
func HTMLToText(s string) string {
	if s == "" {
		return ""
	}
	s = htmlDropBlocks.ReplaceAllString(s, "")
	s = htmlLineBreaks.ReplaceAllString(s, "\n")
	s = htmlAnyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankLineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
