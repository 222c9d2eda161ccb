package inbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	mimemail "github.com/emersion/go-message/mail"
)

// IMAPOptions configures the IMAP mailbox connection.
type IMAPOptions struct {
	Host     string
	Port     int // defaults to 993
	Username string
	Password string
	Mailbox  string // defaults to INBOX
}

// IMAP implements Mailbox over IMAP with TLS. Methods are not safe for
// concurrent use; the ingestion poller processes messages sequentially on
// one connection, which is all this transport needs to support.
type IMAP struct {
	opts IMAPOptions
	c    *client.Client
}

// NewIMAP builds an unconnected mailbox.
func NewIMAP(opts IMAPOptions) *IMAP {
	if opts.Port == 0 {
		opts.Port = 993
	}
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	return &IMAP{opts: opts}
}

// Connect dials, authenticates and selects the mailbox.
func (m *IMAP) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("inbox: dial %s: %w", addr, err)
	}
	c.Timeout = 30 * time.Second
	if err := c.Login(m.opts.Username, m.opts.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("inbox: login %s: %w", m.opts.Username, err)
	}
	if _, err := c.Select(m.opts.Mailbox, false); err != nil {
		_ = c.Logout()
		return fmt.Errorf("inbox: select %s: %w", m.opts.Mailbox, err)
	}
	m.c = c
	return nil
}

// ListUnseenSince searches for unseen messages received since the given
// date.
func (m *IMAP) ListUnseenSince(ctx context.Context, since time.Time) ([]uint32, error) {
	if m.c == nil {
		return nil, fmt.Errorf("inbox: not connected")
	}
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since
	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("inbox: search: %w", err)
	}
	return uids, nil
}

// Fetch retrieves one message by UID without setting its seen flag.
func (m *IMAP) Fetch(ctx context.Context, uid uint32) (*Message, error) {
	if m.c == nil {
		return nil, fmt.Errorf("inbox: not connected")
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	ch := make(chan *imap.Message, 1)
	if err := m.c.UidFetch(seqset, items, ch); err != nil {
		return nil, fmt.Errorf("inbox: fetch uid %d: %w", uid, err)
	}
	raw := <-ch
	if raw == nil {
		return nil, fmt.Errorf("inbox: uid %d not found", uid)
	}

	msg := &Message{UID: uid, Date: raw.InternalDate}
	if env := raw.Envelope; env != nil {
		msg.Subject = env.Subject
		if !env.Date.IsZero() {
			msg.Date = env.Date
		}
		if len(env.From) > 0 {
			msg.From = env.From[0].Address()
		}
	}
	if body := raw.GetBody(section); body != nil {
		readParts(body, msg)
	}
	return msg, nil
}

// readParts walks the MIME structure, keeping the first plain and first
// HTML inline parts and the attachment filenames. Malformed parts end the
// walk; whatever was extracted up to that point stands.
func readParts(r io.Reader, msg *Message) {
	mr, err := mimemail.CreateReader(r)
	if err != nil {
		if b, readErr := io.ReadAll(r); readErr == nil {
			msg.TextBody = string(b)
		}
		return
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF || err != nil {
			return
		}
		switch h := p.Header.(type) {
		case *mimemail.InlineHeader:
			ct, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(ct, "text/plain") && msg.TextBody == "":
				msg.TextBody = string(b)
			case strings.HasPrefix(ct, "text/html") && msg.HTMLBody == "":
				msg.HTMLBody = string(b)
			}
		case *mimemail.AttachmentHeader:
			if name, err := h.Filename(); err == nil && name != "" {
				msg.Attachments = append(msg.Attachments, name)
			}
		}
	}
}

// MarkSeen flags the message as seen at the mailbox.
func (m *IMAP) MarkSeen(ctx context.Context, uid uint32) error {
	if m.c == nil {
		return fmt.Errorf("inbox: not connected")
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("inbox: mark seen uid %d: %w", uid, err)
	}
	return nil
}

// Close logs out; safe to call when never connected.
func (m *IMAP) Close() error {
	if m.c == nil {
		return nil
	}
	err := m.c.Logout()
	m.c = nil
	return err
}
