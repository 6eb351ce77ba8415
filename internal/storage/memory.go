package storage

import (
	"context"
	"sync"
)

var _ Gateway = (*MemoryGateway)(nil)

// MemoryGateway keeps blobs in process memory. Nothing survives a restart.
type MemoryGateway struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{blobs: make(map[string][]byte)}
}

func (m *MemoryGateway) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemoryGateway) Set(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}
