// Package dispatch fans one service request out to every garage as
// individual quote-request emails.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/mail"
	"github.com/lgarneau/devisauto/internal/store"
)

const (
	// DefaultBatchSize bounds concurrent outbound connections per batch.
	// This is rate-limit protection for the mail provider, not a
	// throughput optimization.
	DefaultBatchSize = 10
	// DefaultBatchPause separates consecutive batches.
	DefaultBatchPause = time.Second
)

// Dispatcher sends quote-request emails to the full garage list.
type Dispatcher struct {
	Store      store.Store
	Sender     mail.Sender
	BatchSize  int
	BatchPause time.Duration
}

// Result counts the outcome of one fan-out.
type Result struct {
	Contacted int
	Failed    int
	Total     int
}

// SendQuoteRequests emails every garage about the request. An empty garage
// list is a configuration error and fails immediately; a failed send to one
// garage is counted and never aborts the rest.
func (d *Dispatcher) SendQuoteRequests(ctx context.Context, token string, req store.ServiceRequest) (Result, error) {
	recs, err := d.Store.Query(ctx, store.TableGarages, nil)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: load garages: %w", err)
	}
	if len(recs) == 0 {
		return Result{}, fmt.Errorf("dispatch: no garages configured")
	}

	garages := make([]store.Garage, 0, len(recs))
	for _, rec := range recs {
		garages = append(garages, store.GarageFromRecord(rec))
	}

	subject, html, text := quoteRequestEmail(token, req)

	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	pause := d.BatchPause
	if pause <= 0 {
		pause = DefaultBatchPause
	}

	var contacted, failed int32
	for start := 0; start < len(garages); start += batchSize {
		end := start + batchSize
		if end > len(garages) {
			end = len(garages)
		}

		var wg sync.WaitGroup
		for _, g := range garages[start:end] {
			to := correlate.NormalizeEmail(g.Email)
			if to == "" {
				log.Printf("dispatch: garage %q has no usable email", g.Name)
				atomic.AddInt32(&failed, 1)
				continue
			}
			wg.Add(1)
			go func(to, name string) {
				defer wg.Done()
				if err := d.Sender.Send(ctx, mail.Message{To: to, Subject: subject, HTML: html, Text: text}); err != nil {
					log.Printf("dispatch: send to %s (%s): %v", to, name, err)
					atomic.AddInt32(&failed, 1)
					return
				}
				atomic.AddInt32(&contacted, 1)
			}(to, g.Name)
		}
		wg.Wait()

		if end < len(garages) {
			if err := sleepContext(ctx, pause); err != nil {
				// Cancelled between batches: report what went out so far.
				break
			}
		}
	}

	return Result{
		Contacted: int(atomic.LoadInt32(&contacted)),
		Failed:    int(atomic.LoadInt32(&failed)),
		Total:     len(garages),
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
