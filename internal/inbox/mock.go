package inbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockMailbox implements Mailbox for testing. Messages are added with Add;
// seen flags behave like a real mailbox, so a poll cycle that marked
// messages read will not see them again.
type MockMailbox struct {
	mu        sync.Mutex
	connected bool
	nextUID   uint32
	messages  map[uint32]Message
	seen      map[uint32]bool
	listErr   error
	fetchErr  map[uint32]error
	markErr   map[uint32]error
}

// NewMockMailbox creates an empty mailbox.
func NewMockMailbox() *MockMailbox {
	return &MockMailbox{
		nextUID:  1,
		messages: make(map[uint32]Message),
		seen:     make(map[uint32]bool),
		fetchErr: make(map[uint32]error),
		markErr:  make(map[uint32]error),
	}
}

// Add stores a message, assigning a UID when none is set, and returns the
// UID.
func (m *MockMailbox) Add(msg Message) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.UID == 0 {
		msg.UID = m.nextUID
	}
	if msg.UID >= m.nextUID {
		m.nextUID = msg.UID + 1
	}
	m.messages[msg.UID] = msg
	return msg.UID
}

// Connect marks the mailbox connected.
func (m *MockMailbox) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// ListUnseenSince returns unseen UIDs with a date on or after since, in
// ascending order.
func (m *MockMailbox) ListUnseenSince(ctx context.Context, since time.Time) ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock mailbox: not connected")
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	var uids []uint32
	for uid, msg := range m.messages {
		if !m.seen[uid] && !msg.Date.Before(since) {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// Fetch returns the message for a UID.
func (m *MockMailbox) Fetch(ctx context.Context, uid uint32) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[uid]; err != nil {
		return nil, err
	}
	msg, ok := m.messages[uid]
	if !ok {
		return nil, fmt.Errorf("mock mailbox: uid %d not found", uid)
	}
	return &msg, nil
}

// MarkSeen flags the message seen.
func (m *MockMailbox) MarkSeen(ctx context.Context, uid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErr[uid]; err != nil {
		return err
	}
	m.seen[uid] = true
	return nil
}

// Close marks the mailbox disconnected.
func (m *MockMailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Seen reports whether a UID has been marked seen.
func (m *MockMailbox) Seen(uid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[uid]
}

// FailList scripts ListUnseenSince to fail.
func (m *MockMailbox) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// FailFetch scripts Fetch for a UID to fail.
func (m *MockMailbox) FailFetch(uid uint32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr[uid] = err
}
