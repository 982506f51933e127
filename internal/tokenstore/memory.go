package tokenstore

import (
	"context"
	"sync"
)

// Memory keeps the credential for the life of the process.
type Memory struct {
	mu         sync.RWMutex
	credential string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(context.Context) (string, error) {
	if m == nil {
		return "", nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credential, nil
}

func (m *Memory) Set(_ context.Context, credential string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = credential
	return nil
}

func (m *Memory) Clear(context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = ""
	return nil
}
