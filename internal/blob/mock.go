package blob

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MockStore implements Store for testing, keeping uploads in memory.
type MockStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

// NewMockStore creates an empty mock.
func NewMockStore() *MockStore {
	return &MockStore{uploads: make(map[string][]byte)}
}

// Upload records the blob and returns a deterministic fake URL.
func (m *MockStore) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.uploads[name] = data
	return fmt.Sprintf("https://blobs.test/%s", name), nil
}

// Uploaded returns the stored bytes for a name.
func (m *MockStore) Uploaded(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.uploads[name]
	return b, ok
}

// Fail scripts every Upload to fail.
func (m *MockStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
