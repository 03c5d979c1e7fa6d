package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-memory, thread-safe Store.
// Values are copied on the way in and out, so callers never share buffers
// with the store.
type Memory struct {
	mu      sync.RWMutex
	values  map[string][]byte
	putErr  error
	putHits int
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putHits++
	if m.putErr != nil {
		return m.putErr
	}
	m.values[key] = clone(value)
	return nil
}

// Close implements Store. It is a no-op.
func (m *Memory) Close() error { return nil }

// FailPuts makes every subsequent Put return err. Pass nil to restore
// normal behaviour. Used to simulate a full or unavailable medium.
func (m *Memory) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// Puts returns the number of Put calls seen so far, failed ones included.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.putHits
}
