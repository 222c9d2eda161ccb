package respond

import (
	"fmt"
	"html"
	"strings"

	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/mail"
	"github.com/lgarneau/devisauto/internal/store"
)

// unspecifiedQuote is rendered when no price could be extracted from a
// reply. A garage that answered must still appear in the summary.
const unspecifiedQuote = "Non spécifié"

// summaryEmail assembles the customer-facing summary from every reply
// received for the request's VIN, joined with garage contact details.
func summaryEmail(req store.ServiceRequest, replies []store.GarageReply, garages []store.Garage) mail.Message {
	byEmail := make(map[string]store.Garage, len(garages))
	for _, g := range garages {
		byEmail[correlate.NormalizeEmail(g.Email)] = g
	}

	vehicle := strings.TrimSpace(req.Brand + " " + req.PlateNumber)
	if vehicle == "" {
		vehicle = req.VIN
	}
	subject := "Vos devis de réparation - " + vehicle

	var htmlB, textB strings.Builder

	htmlB.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	fmt.Fprintf(&htmlB, "<h2>Vos devis de réparation</h2>")
	greeting := "Bonjour,"
	if req.Name != "" {
		greeting = "Bonjour " + req.Name + ","
	}
	fmt.Fprintf(&htmlB, "<p>%s</p>", html.EscapeString(greeting))
	textB.WriteString(greeting + "\n\n")

	if len(replies) == 0 {
		notice := "Nous n'avons pas encore reçu de devis de la part des garages contactés pour votre " + vehicle + ". Nous vous recommandons de les contacter directement."
		fmt.Fprintf(&htmlB, "<p>%s</p>", html.EscapeString(notice))
		textB.WriteString(notice + "\n")
	} else {
		intro := fmt.Sprintf("Voici les devis reçus pour votre %s :", vehicle)
		fmt.Fprintf(&htmlB, "<p>%s</p>", html.EscapeString(intro))
		textB.WriteString(intro + "\n\n")

		for _, reply := range replies {
			g := byEmail[correlate.NormalizeEmail(reply.GarageEmail)]
			name := g.Name
			if name == "" {
				name = correlate.NormalizeEmail(reply.GarageEmail)
			}
			quote := quoteFor(reply)
			body := strings.TrimSpace(correlate.StripQuoted(reply.Body))

			htmlB.WriteString("<div style=\"border: 1px solid #ddd; border-radius: 6px; padding: 12px; margin-bottom: 12px;\">")
			fmt.Fprintf(&htmlB, "<h3 style=\"margin-top: 0;\">%s</h3>", html.EscapeString(name))
			fmt.Fprintf(&htmlB, "<p><strong>Devis : %s</strong></p>", html.EscapeString(quote))
			for _, line := range contactLines(g) {
				fmt.Fprintf(&htmlB, "<p>%s</p>", html.EscapeString(line))
			}
			if body != "" {
				fmt.Fprintf(&htmlB, "<p>%s</p>", strings.ReplaceAll(html.EscapeString(body), "\n", "<br>"))
			}
			htmlB.WriteString("</div>")

			fmt.Fprintf(&textB, "%s\nDevis : %s\n", name, quote)
			for _, line := range contactLines(g) {
				textB.WriteString(line + "\n")
			}
			if body != "" {
				textB.WriteString(body + "\n")
			}
			textB.WriteString("\n")
		}
	}

	closing := "Cordialement,\nL'équipe Devis Auto"
	fmt.Fprintf(&htmlB, "<p>%s</p>", strings.ReplaceAll(html.EscapeString(closing), "\n", "<br>"))
	htmlB.WriteString("</body></html>")
	textB.WriteString(closing + "\n")

	return mail.Message{
		To:      req.Email,
		Subject: subject,
		HTML:    htmlB.String(),
		Text:    textB.String(),
	}
}

// quoteFor prefers the amount tagged at ingestion time, then a fresh
// extraction from the cleaned body.
func quoteFor(reply store.GarageReply) string {
	if reply.QuoteAmount != "" {
		return reply.QuoteAmount
	}
	if q := correlate.ExtractQuote(correlate.StripQuoted(reply.Body)); q != "" {
		return q
	}
	return unspecifiedQuote
}

func contactLines(g store.Garage) []string {
	var lines []string
	if g.Phone != "" {
		lines = append(lines, "Téléphone : "+g.Phone)
	}
	if g.Address != "" {
		lines = append(lines, "Adresse : "+g.Address)
	}
	if g.Website != "" {
		lines = append(lines, "Site : "+g.Website)
	}
	return lines
}
