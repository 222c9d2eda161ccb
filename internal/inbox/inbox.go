// Package inbox is the inbound mail transport: list unseen messages, fetch
// one, mark it read. The IMAP implementation talks to the real mailbox; the
// mock backs tests. The "seen" flag at the mailbox is what guarantees each
// message is evaluated at most once across polling cycles.
package inbox

import (
	"context"
	"strings"
	"time"
)

// Message is one inbound email, with both body variants when present.
type Message struct {
	UID         uint32
	From        string // raw From, may carry a display name
	Subject     string
	Date        time.Time
	TextBody    string
	HTMLBody    string
	Attachments []string // filenames only
}

// Body returns the preferred text content: the plain part when present,
// else the HTML part reduced to text.
func (m *Message) Body() string {
	if strings.TrimSpace(m.TextBody) != "" {
		return m.TextBody
	}
	return HTMLToText(m.HTMLBody)
}

// Mailbox is the contract over the inbound transport.
type Mailbox interface {
	Connect(ctx context.Context) error
	// ListUnseenSince returns the UIDs of not-yet-seen messages received on
	// or after since. IMAP SINCE has calendar-day granularity; callers that
	// need a tighter bound filter on Message.Date after fetching.
	ListUnseenSince(ctx context.Context, since time.Time) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*Message, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}
