package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[int64]map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[int64]map[string]string)}
}

func (m *Memory) Get(_ context.Context, chatID int64, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[chatID][key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, chatID int64, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scoped, ok := m.entries[chatID]
	if !ok {
		scoped = make(map[string]string)
		m.entries[chatID] = scoped
	}
	scoped[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, chatID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scoped, ok := m.entries[chatID]
	if !ok {
		return nil
	}
	delete(scoped, key)
	if len(scoped) == 0 {
		delete(m.entries, chatID)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, chatID)
	return nil
}

// Len returns the number of conversations holding state.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
