package session

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is a Durable that lives as long as the process.
type Memory struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[Key][]byte)}
}

func (m *Memory) Save(_ context.Context, key Key, data []byte) error {
	m.mu.Lock()
	m.data[key] = slices.Clone(data)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]Key, error) {
	m.mu.RLock()
	keys := make([]Key, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	slices.SortFunc(keys, func(a, b Key) int {
		if c := strings.Compare(a.Website, b.Website); c != 0 {
			return c
		}
		return strings.Compare(a.ProfileID, b.ProfileID)
	})
	return keys, nil
}
