package mail

import (
	"context"
	"sync"
)

// MockSender implements Sender for testing. It records every delivered
// message and can be scripted to fail for specific recipients or entirely.
type MockSender struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]error
	failAll error
}

// NewMockSender creates an empty mock.
func NewMockSender() *MockSender {
	return &MockSender{failFor: make(map[string]error)}
}

// Send records the message unless a scripted failure applies.
func (m *MockSender) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	if err, ok := m.failFor[msg.To]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages in send order.
func (m *MockSender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// FailFor scripts a failure for every send to addr.
func (m *MockSender) FailFor(addr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[addr] = err
}

// FailAll scripts a failure for every send; pass nil to clear.
func (m *MockSender) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}
