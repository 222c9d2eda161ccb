// Package respond decides when a customer has waited long enough, or heard
// from enough garages, to receive their consolidated quote summary, and
// sends it at most once per VIN.
package respond

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/mail"
	"github.com/lgarneau/devisauto/internal/store"
)

const (
	// DefaultStaleAfter is the age past which a request is closed without
	// emailing the customer. Abandoned and test rows must never trigger a
	// late summary.
	DefaultStaleAfter = 7 * 24 * time.Hour

	// DefaultMinBusinessDays is the waiting period after which a summary
	// goes out even if some garages have not replied.
	DefaultMinBusinessDays = 2
)

// Engine evaluates every open service request each cycle and sends the
// customer summary when either every known garage has replied or the
// business-day threshold has elapsed.
type Engine struct {
	Store  store.Store
	Sender mail.Sender

	StaleAfter      time.Duration
	MinBusinessDays int
	Now             func() time.Time
}

// Result reports one evaluation cycle. Per-VIN failures are collected in
// Errors so one bad row never blocks the rest of the cycle.
type Result struct {
	ResponsesSent int
	VINsChecked   int
	Errors        []string
}

// CheckAndSendCustomerResponses runs one completion-policy cycle over all
// service requests. Requests sharing a VIN are evaluated as one unit, with
// the most recent submission as the representative; once a summary is sent
// the whole group is marked and never reconsidered.
func (e *Engine) CheckAndSendCustomerResponses(ctx context.Context) (Result, error) {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	staleAfter := e.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	minDays := e.MinBusinessDays
	if minDays <= 0 {
		minDays = DefaultMinBusinessDays
	}

	var res Result

	recs, err := e.Store.Query(ctx, store.TableServiceRequests, nil)
	if err != nil {
		return res, fmt.Errorf("respond: load requests: %w", err)
	}
	groups := make(map[string][]store.ServiceRequest)
	for _, rec := range recs {
		req := store.ServiceRequestFromRecord(rec)
		if req.VIN == "" {
			continue
		}
		groups[req.VIN] = append(groups[req.VIN], req)
	}

	garageRecs, err := e.Store.Query(ctx, store.TableGarages, nil)
	if err != nil {
		return res, fmt.Errorf("respond: load garages: %w", err)
	}
	garages := make([]store.Garage, 0, len(garageRecs))
	for _, rec := range garageRecs {
		garages = append(garages, store.GarageFromRecord(rec))
	}

	vins := make([]string, 0, len(groups))
	for vin := range groups {
		vins = append(vins, vin)
	}
	sort.Strings(vins)

	for _, vin := range vins {
		rows := groups[vin]
		if anySent(rows) {
			continue
		}
		res.VINsChecked++

		rep := representative(rows)
		submitted := rep.SubmittedAt
		if submitted.IsZero() {
			// Unparseable submission dates must not crash or starve the
			// check; assume the request is one day old.
			submitted = now.Add(-24 * time.Hour)
		}

		if now.Sub(submitted) > staleAfter {
			log.Printf("respond: vin %s submitted %s, closing without email", vin, submitted.Format(time.RFC3339))
			res.Errors = append(res.Errors, e.markSent(ctx, rows, now)...)
			continue
		}

		replies, err := e.repliesForVIN(ctx, vin)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("vin %s: load replies: %v", vin, err))
			continue
		}

		days := BusinessDaysBetween(submitted, now)
		if !allGaragesReplied(garages, replies) && days < minDays {
			continue
		}

		if rep.Email == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("vin %s: request has no customer email", vin))
			continue
		}
		if err := e.Sender.Send(ctx, summaryEmail(rep, replies, garages)); err != nil {
			// Left unmarked so the next cycle retries the send.
			res.Errors = append(res.Errors, fmt.Sprintf("vin %s: send summary: %v", vin, err))
			continue
		}
		log.Printf("respond: vin %s summary sent to %s (%d replies, %d business days)", vin, rep.Email, len(replies), days)
		res.ResponsesSent++
		res.Errors = append(res.Errors, e.markSent(ctx, rows, now)...)
	}

	return res, nil
}

func (e *Engine) repliesForVIN(ctx context.Context, vin string) ([]store.GarageReply, error) {
	recs, err := e.Store.Query(ctx, store.TableGarageReplies, store.Eq(store.FieldVIN, vin))
	if err != nil {
		return nil, err
	}
	replies := make([]store.GarageReply, 0, len(recs))
	for _, rec := range recs {
		replies = append(replies, store.GarageReplyFromRecord(rec))
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].ReceivedAt.Before(replies[j].ReceivedAt) })
	return replies, nil
}

// markSent stamps every row in the group so resubmitted VINs close together.
// Update failures are reported but do not undo the send that already
// happened.
func (e *Engine) markSent(ctx context.Context, rows []store.ServiceRequest, at time.Time) []string {
	marker := at.UTC().Format(time.RFC3339Nano)
	var errs []string
	for _, r := range rows {
		if _, err := e.Store.Update(ctx, store.TableServiceRequests, r.ID, map[string]any{store.FieldSentMarker: marker}); err != nil {
			errs = append(errs, fmt.Sprintf("vin %s: mark sent %s: %v", r.VIN, r.ID, err))
		}
	}
	return errs
}

func anySent(rows []store.ServiceRequest) bool {
	for _, r := range rows {
		if r.Sent() {
			return true
		}
	}
	return false
}

// representative picks the most recently submitted row of a VIN group.
func representative(rows []store.ServiceRequest) store.ServiceRequest {
	rep := rows[0]
	for _, r := range rows[1:] {
		if r.SubmittedAt.After(rep.SubmittedAt) {
			rep = r
		}
	}
	return rep
}

// allGaragesReplied checks the live garage set against the reply senders.
// Garages added after dispatch therefore hold the check open until the
// time-based fallback fires; see DESIGN.md.
func allGaragesReplied(garages []store.Garage, replies []store.GarageReply) bool {
	expected := 0
	replied := make(map[string]bool, len(replies))
	for _, r := range replies {
		replied[correlate.NormalizeEmail(r.GarageEmail)] = true
	}
	for _, g := range garages {
		addr := correlate.NormalizeEmail(g.Email)
		if addr == "" {
			continue
		}
		expected++
		if !replied[addr] {
			return false
		}
	}
	return expected > 0
}
