// Package correlate maps free-text garage replies back to the service
// request they answer. Extraction helpers are pure functions over
// (subject, body); the Resolver adds the token-to-request lookup on top.
package correlate

import (
	"context"
	"time"
)

// DefaultWindow is how far a token's embedded timestamp may drift from a
// service request's submission timestamp and still count as a match.
const DefaultWindow = 2 * time.Second

// RequestSource resolves a request token's embedded creation time to the
// VIN of the service request submitted at that moment.
type RequestSource interface {
	// VINByTokenTime returns the VIN of the service request whose submission
	// timestamp lies within window of at, or "" if none does.
	VINByTokenTime(ctx context.Context, at time.Time, window time.Duration) (string, error)
}

// Resolver turns an inbound reply into a VIN. The request token is preferred
// when present because it is unambiguous, but garages sometimes strip the
// reference line, so the VIN in the subject is the robust fallback.
type Resolver struct {
	Requests RequestSource // nil disables token resolution
	Window   time.Duration // defaults to DefaultWindow
}

// Resolve returns the VIN for a reply, or "" when no correlation key can be
// extracted. The lookup order is fixed: labeled request token first, then
// bare or labeled VIN in subject then body.
func (r *Resolver) Resolve(ctx context.Context, subject, body string) (string, error) {
	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}

	// The token search must cover quoted reply content too: mail clients
	// typically echo the original request below the garage's answer.
	if tok := ExtractToken(subject + "\n" + body); tok != "" && r.Requests != nil {
		if at, ok := TokenTime(tok); ok {
			vin, err := r.Requests.VINByTokenTime(ctx, at, window)
			if err == nil && vin != "" {
				return vin, nil
			}
			// An unresolvable token is not fatal; fall through to the VIN.
		}
	}

	return ExtractVIN(subject, body), nil
}
