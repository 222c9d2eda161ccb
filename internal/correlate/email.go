package correlate

import (
	"net/mail"
	"strings"
)

// NormalizeEmail reduces an address to its lowercase addr-spec form so that
// "Garage Dupont <Contact@Dupont.FR>" and "contact@dupont.fr" compare equal.
// Garage identity and reply attribution both key on this form.
func NormalizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if addr, err := mail.ParseAddress(s); err == nil {
		return strings.ToLower(addr.Address)
	}
	// Malformed display-name forms still often carry a usable <addr> part.
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			return strings.ToLower(strings.TrimSpace(s[i+1 : i+j]))
		}
	}
	return strings.ToLower(s)
}
