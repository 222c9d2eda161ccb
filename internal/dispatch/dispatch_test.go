package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/mail"
	"github.com/lgarneau/devisauto/internal/store"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenLocal("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return s
}

func seedGarages(t *testing.T, s store.Store, emails ...string) {
	t.Helper()
	ctx := context.Background()
	for i, email := range emails {
		g := store.Garage{Name: fmt.Sprintf("Garage %d", i+1), Email: email}
		if _, err := s.Create(ctx, store.TableGarages, g.Fields()); err != nil {
			t.Fatalf("seed garage: %v", err)
		}
	}
}

func testRequest() store.ServiceRequest {
	return store.ServiceRequest{
		Name:        "Marie Leclerc",
		Email:       "marie@example.com",
		Phone:       "+33612345678",
		VIN:         "WVWZZZ1KZAW123456",
		Brand:       "Volkswagen",
		PlateNumber: "AB-123-CD",
		Notes:       "Rayure portière avant droite",
		ImageURLs:   []string{"https://img.example/1.jpg"},
		SubmittedAt: time.Now(),
	}
}

func TestSendQuoteRequests_AllGaragesContacted(t *testing.T) {
	s := testStore(t)
	seedGarages(t, s, "a@x.fr", "b@x.fr", "c@x.fr")
	sender := mail.NewMockSender()
	d := &Dispatcher{Store: s, Sender: sender, BatchPause: time.Millisecond}

	token := correlate.NewToken(time.Now())
	res, err := d.SendQuoteRequests(context.Background(), token, testRequest())
	if err != nil {
		t.Fatalf("SendQuoteRequests: %v", err)
	}

	if res.Contacted != 3 || res.Failed != 0 || res.Total != 3 {
		t.Errorf("Result = %+v, want 3/0/3", res)
	}
	if got := len(sender.Sent()); got != 3 {
		t.Fatalf("sent %d emails, want 3", got)
	}
}

func TestSendQuoteRequests_EmptyGarageListIsConfigError(t *testing.T) {
	s := testStore(t)
	sender := mail.NewMockSender()
	d := &Dispatcher{Store: s, Sender: sender}

	_, err := d.SendQuoteRequests(context.Background(), "req_1_a", testRequest())
	if err == nil {
		t.Fatal("empty garage list should fail immediately")
	}
	if len(sender.Sent()) != 0 {
		t.Error("no email should go out with an empty garage list")
	}
}

func TestSendQuoteRequests_FailureIsolated(t *testing.T) {
	s := testStore(t)
	seedGarages(t, s, "a@x.fr", "b@x.fr", "c@x.fr")
	sender := mail.NewMockSender()
	sender.FailFor("b@x.fr", errors.New("mailbox full"))
	d := &Dispatcher{Store: s, Sender: sender, BatchPause: time.Millisecond}

	res, err := d.SendQuoteRequests(context.Background(), "req_1_a", testRequest())
	if err != nil {
		t.Fatalf("SendQuoteRequests: %v", err)
	}
	if res.Contacted != 2 || res.Failed != 1 || res.Total != 3 {
		t.Errorf("Result = %+v, want 2/1/3", res)
	}
}

func TestSendQuoteRequests_BatchesWholeList(t *testing.T) {
	s := testStore(t)
	var emails []string
	for i := 0; i < 25; i++ {
		emails = append(emails, fmt.Sprintf("garage%02d@x.fr", i))
	}
	seedGarages(t, s, emails...)
	sender := mail.NewMockSender()
	d := &Dispatcher{Store: s, Sender: sender, BatchSize: 10, BatchPause: time.Millisecond}

	res, err := d.SendQuoteRequests(context.Background(), "req_1_a", testRequest())
	if err != nil {
		t.Fatalf("SendQuoteRequests: %v", err)
	}
	if res.Contacted != 25 {
		t.Errorf("Contacted = %d, want 25 across 3 batches", res.Contacted)
	}
}

func TestSendQuoteRequests_NormalizesRecipient(t *testing.T) {
	s := testStore(t)
	seedGarages(t, s, "Garage Dupont <Contact@Dupont.FR>")
	sender := mail.NewMockSender()
	d := &Dispatcher{Store: s, Sender: sender}

	if _, err := d.SendQuoteRequests(context.Background(), "req_1_a", testRequest()); err != nil {
		t.Fatalf("SendQuoteRequests: %v", err)
	}
	sent := sender.Sent()
	if len(sent) != 1 || sent[0].To != "contact@dupont.fr" {
		t.Errorf("sent to %+v, want normalized contact@dupont.fr", sent)
	}
}

func TestQuoteRequestEmail_CorrelationIdentifiers(t *testing.T) {
	token := correlate.NewToken(time.Now())
	req := testRequest()
	subject, htmlBody, textBody := quoteRequestEmail(token, req)

	want := "Repair Quote Request - VIN: WVWZZZ1KZAW123456"
	if subject != want {
		t.Errorf("subject = %q, want %q", subject, want)
	}
	if !strings.Contains(textBody, "Reference ID: "+token) {
		t.Error("text body missing the Reference ID line")
	}
	// The resolver must be able to pull both identifiers back out of a
	// reply that quotes this email.
	if got := correlate.ExtractToken(textBody); got != token {
		t.Errorf("ExtractToken(body) = %q, want %q", got, token)
	}
	if got := correlate.ExtractVIN(subject, textBody); got != req.VIN {
		t.Errorf("ExtractVIN = %q, want %q", got, req.VIN)
	}
	if !strings.Contains(htmlBody, "https://img.example/1.jpg") {
		t.Error("html body missing image link")
	}
}

func TestQuoteRequestEmail_PrivacyBoundary(t *testing.T) {
	req := testRequest()
	_, htmlBody, textBody := quoteRequestEmail("req_1_a", req)

	for _, private := range []string{req.Name, req.Email, req.Phone} {
		if strings.Contains(textBody, private) || strings.Contains(htmlBody, private) {
			t.Errorf("garage email leaks customer data %q", private)
		}
	}
}
