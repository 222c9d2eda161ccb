// Package ingest polls the inbox and turns correlatable garage replies into
// GarageReply records.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/inbox"
	"github.com/lgarneau/devisauto/internal/store"
)

// DefaultMaxMessageAge is how old an inbound message may be and still be
// considered. Anything older is backlog that would overwhelm correlation.
const DefaultMaxMessageAge = 24 * time.Hour

// Poller runs one ingestion cycle at a time over a single mailbox
// connection.
type Poller struct {
	Store         store.Store
	Mailbox       inbox.Mailbox
	MaxMessageAge time.Duration    // defaults to DefaultMaxMessageAge
	Now           func() time.Time // defaults to time.Now

	// OnPersisted runs synchronously after a cycle that persisted at least
	// one new reply, so the completion check does not wait for its own
	// schedule once the last expected reply has arrived.
	OnPersisted func(ctx context.Context)
}

// Result reports one poll cycle. Per-message failures land in Errors and
// never abort the cycle.
type Result struct {
	Processed  int
	TotalFound int
	Errors     []string
}

// CheckAndProcessNewEmails lists unseen messages received since the start
// of the current day, correlates each to a VIN and persists the reply.
// When markAsRead is set, every evaluated message is flagged seen at the
// mailbox regardless of persistence outcome: at-most-once evaluation beats
// reprocessing a poison message forever.
func (p *Poller) CheckAndProcessNewEmails(ctx context.Context, markAsRead bool) (Result, error) {
	now := p.now()

	if err := p.Mailbox.Connect(ctx); err != nil {
		return Result{}, fmt.Errorf("ingest: connect: %w", err)
	}
	defer p.Mailbox.Close()

	// Bounding the search window to today keeps the search cheap; the
	// 24-hour age check below is the actual freshness rule.
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	uids, err := p.Mailbox.ListUnseenSince(ctx, startOfDay)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: list unseen: %w", err)
	}

	res := Result{TotalFound: len(uids)}
	persisted := 0
	for _, uid := range uids {
		isNew, err := p.processOne(ctx, uid, now, markAsRead)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("uid %d: %v", uid, err))
			continue
		}
		res.Processed++
		if isNew {
			persisted++
		}
	}

	if persisted > 0 && p.OnPersisted != nil {
		p.OnPersisted(ctx)
	}
	return res, nil
}

// processOne evaluates a single message. isNew reports whether a new
// GarageReply row was created.
func (p *Poller) processOne(ctx context.Context, uid uint32, now time.Time, markAsRead bool) (isNew bool, err error) {
	if markAsRead {
		defer func() {
			if merr := p.Mailbox.MarkSeen(ctx, uid); merr != nil {
				log.Printf("ingest: mark seen uid %d: %v", uid, merr)
			}
		}()
	}

	msg, err := p.Mailbox.Fetch(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("fetch: %w", err)
	}

	maxAge := p.MaxMessageAge
	if maxAge <= 0 {
		maxAge = DefaultMaxMessageAge
	}
	if now.Sub(msg.Date) > maxAge {
		log.Printf("ingest: uid %d older than %s, skipped", uid, maxAge)
		return false, nil
	}

	body := msg.Body()
	resolver := correlate.Resolver{Requests: requestSource{s: p.Store}}
	vin, err := resolver.Resolve(ctx, msg.Subject, body)
	if err != nil {
		return false, fmt.Errorf("resolve: %w", err)
	}
	if vin == "" {
		// A reply without a VIN is unusable downstream; persisting it
		// would only pollute the store with orphaned rows.
		log.Printf("ingest: uid %d from %s has no correlation key, skipped", uid, msg.From)
		return false, nil
	}

	return p.persistReply(ctx, vin, msg, body)
}

// persistReply creates the GarageReply row unless one already exists for
// (VIN, normalized sender). The store-side check is the single source of
// truth for duplicates.
func (p *Poller) persistReply(ctx context.Context, vin string, msg *inbox.Message, body string) (bool, error) {
	sender := correlate.NormalizeEmail(msg.From)
	if sender == "" {
		return false, fmt.Errorf("reply for %s has no sender address", vin)
	}

	existing, err := p.Store.Query(ctx, store.TableGarageReplies,
		store.Eq(store.FieldVIN, vin).And(store.FieldGarageEmail, sender))
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	if len(existing) > 0 {
		log.Printf("ingest: duplicate reply from %s for %s, discarded", sender, vin)
		return false, nil
	}

	cleaned := correlate.StripQuoted(body)
	reply := store.GarageReply{
		VIN:         vin,
		GarageEmail: sender,
		Subject:     msg.Subject,
		Body:        cleaned,
		QuoteAmount: correlate.ExtractQuote(cleaned),
		ReceivedAt:  msg.Date,
	}
	if _, err := p.Store.Create(ctx, store.TableGarageReplies, reply.Fields()); err != nil {
		return false, fmt.Errorf("persist: %w", err)
	}
	return true, nil
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// requestSource adapts the record store to the resolver's token lookup.
type requestSource struct {
	s store.Store
}

// VINByTokenTime scans service requests for the one submitted within
// window of the token's embedded timestamp.
func (r requestSource) VINByTokenTime(ctx context.Context, at time.Time, window time.Duration) (string, error) {
	recs, err := r.s.Query(ctx, store.TableServiceRequests, nil)
	if err != nil {
		return "", err
	}
	bestVIN := ""
	bestDelta := window + 1
	for _, rec := range recs {
		req := store.ServiceRequestFromRecord(rec)
		if req.VIN == "" || req.SubmittedAt.IsZero() {
			continue
		}
		delta := at.Sub(req.SubmittedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window && delta < bestDelta {
			bestVIN = req.VIN
			bestDelta = delta
		}
	}
	return bestVIN, nil
}
