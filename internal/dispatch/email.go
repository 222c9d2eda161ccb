package dispatch

import (
	"fmt"
	"html"
	"strings"

	"github.com/lgarneau/devisauto/internal/store"
)

// quoteRequestEmail renders the garage-facing email. The VIN goes in the
// subject so even a bare reply without quoting stays correlatable, and the
// body carries the literal "Reference ID:" line the correlation resolver
// looks for. Customer name, email and phone are deliberately absent: the
// garage quotes against the vehicle, not the person.
func quoteRequestEmail(token string, req store.ServiceRequest) (subject, htmlBody, textBody string) {
	subject = "Repair Quote Request - VIN: " + req.VIN

	var text strings.Builder
	text.WriteString("Bonjour,\n\n")
	text.WriteString("Nous recherchons un devis pour la réparation du véhicule suivant.\n\n")
	fmt.Fprintf(&text, "Reference ID: %s\n", token)
	fmt.Fprintf(&text, "VIN: %s\n", req.VIN)
	fmt.Fprintf(&text, "Marque: %s\n", req.Brand)
	fmt.Fprintf(&text, "Immatriculation: %s\n", req.PlateNumber)
	text.WriteString("\nDescription des dégâts:\n")
	text.WriteString(req.Notes + "\n")
	if len(req.ImageURLs) > 0 {
		text.WriteString("\nPhotos:\n")
		for _, u := range req.ImageURLs {
			text.WriteString(u + "\n")
		}
	}
	text.WriteString("\nMerci de répondre directement à cet email en conservant l'objet.\n")
	textBody = text.String()

	var b strings.Builder
	b.WriteString("<p>Bonjour,</p>")
	b.WriteString("<p>Nous recherchons un devis pour la réparation du véhicule suivant.</p>")
	b.WriteString("<ul>")
	fmt.Fprintf(&b, "<li>Reference ID: %s</li>", html.EscapeString(token))
	fmt.Fprintf(&b, "<li>VIN: %s</li>", html.EscapeString(req.VIN))
	fmt.Fprintf(&b, "<li>Marque: %s</li>", html.EscapeString(req.Brand))
	fmt.Fprintf(&b, "<li>Immatriculation: %s</li>", html.EscapeString(req.PlateNumber))
	b.WriteString("</ul>")
	fmt.Fprintf(&b, "<p><strong>Description des dégâts:</strong><br>%s</p>",
		html.EscapeString(req.Notes))
	if len(req.ImageURLs) > 0 {
		b.WriteString("<p><strong>Photos:</strong></p><ul>")
		for _, u := range req.ImageURLs {
			escaped := html.EscapeString(u)
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, escaped, escaped)
		}
		b.WriteString("</ul>")
	}
	b.WriteString("<p>Merci de répondre directement à cet email en conservant l'objet.</p>")
	htmlBody = b.String()

	return subject, htmlBody, textBody
}
