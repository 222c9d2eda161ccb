package correlate

import (
	"regexp"
	"strings"
)

// quotePattern matches euro amounts as garages actually write them:
// "350€", "500 euros", "1 200,50 EUR", and ranges like "300-400€" or
// "300 à 400 euros".
var quotePattern = regexp.MustCompile(`(?i)(\d+(?:[ .]\d{3})*(?:[.,]\d{1,2})?(?:\s*(?:-|–|à)\s*\d+(?:[ .]\d{3})*(?:[.,]\d{1,2})?)?)\s*(?:€|euros?\b|eur\b)`)

// ExtractQuote pulls a price out of free reply text, normalized to
// "<amount>€". Returns "" when no recognizable amount is present; the
// caller decides how to render a missing quote.
func ExtractQuote(text string) string {
	m := quotePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	amount := strings.Join(strings.Fields(m[1]), " ")
	return amount + "€"
}
