// Package mail is the outbound notifier. One Send call makes exactly one
// external delivery attempt (plus at most one token-refresh retry on an
// authentication expiry); ordinary send failures come back as errors so
// batch callers can count them without aborting the batch.
package mail

import "context"

// Attachment is a file carried with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Sender delivers one email to one recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
