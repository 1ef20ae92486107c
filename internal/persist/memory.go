package persist

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process BlobStore. Values are copied on the way in and out.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	failPuts error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPuts != nil {
		return m.failPuts
	}
	m.values[key] = slices.Clone(value)
	return nil
}

// SetFailPuts makes every Put return err until it is called again with nil.
func (m *Memory) SetFailPuts(err error) {
	m.mu.Lock()
	m.failPuts = err
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }
