package blobstore

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is the in-process Store used by tests and single-node runs.
type MemoryStore struct {
	mu         sync.RWMutex
	blobs      map[string][]byte
	publicBase string
}

func NewMemory(publicBaseURL string) *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[string][]byte),
		publicBase: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (m *MemoryStore) Put(_ context.Context, locator string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[locator] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, locator string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[locator]
	if !ok {
		return nil, ErrBlobNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, locator)
	return nil
}

func (m *MemoryStore) PublicURL(locator string) string {
	return m.publicBase + "/uploads/" + locator
}

// Len reports the number of stored blobs. Used by rollback assertions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
