package ingest

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/lgarneau/devisauto/internal/inbox"
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

var testNow = time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

func newPoller(s store.Store, mb inbox.Mailbox) *Poller {
	return &Poller{Store: s, Mailbox: mb, Now: func() time.Time { return testNow }}
}

func replyMessage(date time.Time) inbox.Message {
	return inbox.Message{
		From:     "Garage Dupont <contact@dupont.fr>",
		Subject:  "Re: Repair Quote Request - VIN: WVWZZZ1KZAW123456",
		Date:     date,
		TextBody: "Bonjour, nous pouvons le faire pour 500 euros.\n\nOn Thu, May 2, 2024 Devis Auto wrote:\n> Reference ID: req_x",
	}
}

func TestCheckAndProcessNewEmails_PersistsReply(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	uid := mb.Add(replyMessage(testNow.Add(-2 * time.Hour)))

	res, err := newPoller(s, mb).CheckAndProcessNewEmails(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}
	if res.TotalFound != 1 || res.Processed != 1 || len(res.Errors) != 0 {
		t.Fatalf("Result = %+v, want 1 found, 1 processed, no errors", res)
	}

	recs, err := s.Query(context.Background(), store.TableGarageReplies, nil)
	if err != nil {
		t.Fatalf("Query replies: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("reply rows = %d, want exactly 1", len(recs))
	}
	reply := store.GarageReplyFromRecord(recs[0])
	if reply.VIN != "WVWZZZ1KZAW123456" {
		t.Errorf("VIN = %q", reply.VIN)
	}
	if reply.GarageEmail != "contact@dupont.fr" {
		t.Errorf("GarageEmail = %q, want normalized sender", reply.GarageEmail)
	}
	if reply.QuoteAmount != "500€" {
		t.Errorf("QuoteAmount = %q, want 500€", reply.QuoteAmount)
	}
	// The stored body must not contain the quoted thread.
	if want := "Bonjour, nous pouvons le faire pour 500 euros."; reply.Body != want {
		t.Errorf("Body = %q, want %q", reply.Body, want)
	}
	if !mb.Seen(uid) {
		t.Error("message not marked seen after processing")
	}
}

func TestCheckAndProcessNewEmails_DuplicateDiscarded(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	mb.Add(replyMessage(testNow.Add(-2 * time.Hour)))
	p := newPoller(s, mb)

	if _, err := p.CheckAndProcessNewEmails(context.Background(), true); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	// Same garage answers the same VIN again, with a different casing.
	dup := replyMessage(testNow.Add(-time.Hour))
	dup.From = "CONTACT@DUPONT.FR"
	mb.Add(dup)

	res, err := p.CheckAndProcessNewEmails(context.Background(), true)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("duplicate produced errors: %v", res.Errors)
	}

	recs, _ := s.Query(context.Background(), store.TableGarageReplies, nil)
	if len(recs) != 1 {
		t.Errorf("reply rows = %d, want 1 after duplicate", len(recs))
	}
}

func TestCheckAndProcessNewEmails_NoVINSkipped(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	uid := mb.Add(inbox.Message{
		From:     "contact@dupont.fr",
		Subject:  "Re: votre demande",
		Date:     testNow.Add(-time.Hour),
		TextBody: "Pouvez-vous préciser le modèle ?",
	})

	res, err := newPoller(s, mb).CheckAndProcessNewEmails(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("uncorrelatable message is a skip, not an error: %v", res.Errors)
	}

	recs, _ := s.Query(context.Background(), store.TableGarageReplies, nil)
	if len(recs) != 0 {
		t.Error("uncorrelatable message must not be persisted")
	}
	if !mb.Seen(uid) {
		t.Error("skipped message must still be marked seen")
	}
}

func TestCheckAndProcessNewEmails_OldMessageSkipped(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	// Listed by the since window but older than the configured age limit.
	mb.Add(replyMessage(testNow.Add(-12 * time.Hour)))

	p := newPoller(s, mb)
	p.MaxMessageAge = 10 * time.Hour
	res, err := p.CheckAndProcessNewEmails(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}
	_ = res

	recs, _ := s.Query(context.Background(), store.TableGarageReplies, nil)
	if len(recs) != 0 {
		t.Error("stale message must not be persisted")
	}
}

func TestCheckAndProcessNewEmails_TokenResolvesToRequest(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	submitted := testNow.Add(-3 * time.Hour)
	req := store.ServiceRequest{VIN: "VF1RFB00861234567", Email: "c@x.fr", SubmittedAt: submitted}
	if _, err := s.Create(ctx, store.TableServiceRequests, req.Fields()); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	// Reply without any VIN anywhere, but with a reference line whose token
	// timestamp is within 2s of the submission.
	mb := inbox.NewMockMailbox()
	mb.Add(inbox.Message{
		From:     "contact@dupont.fr",
		Subject:  "Re: demande de devis",
		Date:     testNow.Add(-time.Hour),
		TextBody: "600 euros.\n> Reference ID: req_" +
			timeMillis(submitted.Add(300*time.Millisecond)) + "_abc123",
	})

	if _, err := newPoller(s, mb).CheckAndProcessNewEmails(ctx, true); err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}

	recs, _ := s.Query(ctx, store.TableGarageReplies, nil)
	if len(recs) != 1 {
		t.Fatalf("reply rows = %d, want 1", len(recs))
	}
	if got := store.GarageReplyFromRecord(recs[0]).VIN; got != "VF1RFB00861234567" {
		t.Errorf("VIN = %q, want token-resolved VIN", got)
	}
}

func TestCheckAndProcessNewEmails_MarkedSeenDespitePersistFailure(t *testing.T) {
	s := &failingStore{Store: testStore(t), createErr: errors.New("store down")}
	mb := inbox.NewMockMailbox()
	uid := mb.Add(replyMessage(testNow.Add(-time.Hour)))

	res, err := newPoller(s, mb).CheckAndProcessNewEmails(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want the persistence failure recorded", res.Errors)
	}
	if !mb.Seen(uid) {
		t.Error("message must be marked seen even when persistence fails")
	}
}

func TestCheckAndProcessNewEmails_FetchFailureDoesNotAbortCycle(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	bad := mb.Add(replyMessage(testNow.Add(-time.Hour)))
	mb.FailFetch(bad, errors.New("connection reset"))
	good := replyMessage(testNow.Add(-time.Hour))
	good.From = "autre@garage.fr"
	mb.Add(good)

	res, err := newPoller(s, mb).CheckAndProcessNewEmails(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}
	if res.Processed != 1 || len(res.Errors) != 1 {
		t.Errorf("Result = %+v, want 1 processed and 1 error", res)
	}

	recs, _ := s.Query(context.Background(), store.TableGarageReplies, nil)
	if len(recs) != 1 {
		t.Errorf("reply rows = %d, want 1 from the good message", len(recs))
	}
}

func TestCheckAndProcessNewEmails_TriggersCompletionCheck(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	mb.Add(replyMessage(testNow.Add(-time.Hour)))

	p := newPoller(s, mb)
	triggered := 0
	p.OnPersisted = func(ctx context.Context) { triggered++ }

	if _, err := p.CheckAndProcessNewEmails(context.Background(), true); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if triggered != 1 {
		t.Errorf("OnPersisted ran %d times after persisting cycle, want 1", triggered)
	}

	// A cycle with nothing new must not trigger it.
	if _, err := p.CheckAndProcessNewEmails(context.Background(), true); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if triggered != 1 {
		t.Errorf("OnPersisted ran %d times after empty cycle, want still 1", triggered)
	}
}

func TestCheckAndProcessNewEmails_NoMarkLeavesUnseen(t *testing.T) {
	s := testStore(t)
	mb := inbox.NewMockMailbox()
	uid := mb.Add(replyMessage(testNow.Add(-time.Hour)))

	if _, err := newPoller(s, mb).CheckAndProcessNewEmails(context.Background(), false); err != nil {
		t.Fatalf("CheckAndProcessNewEmails: %v", err)
	}
	if mb.Seen(uid) {
		t.Error("markAsRead=false must leave the seen flag untouched")
	}
}

// failingStore fails Create while delegating everything else.
type failingStore struct {
	store.Store
	createErr error
}

func (f *failingStore) Create(ctx context.Context, table string, fields map[string]any) (store.Record, error) {
	if f.createErr != nil {
		return store.Record{}, f.createErr
	}
	return f.Store.Create(ctx, table, fields)
}

func timeMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
