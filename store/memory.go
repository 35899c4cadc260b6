package store

import (
	"sort"
	"strings"
	"sync"
)

// Memory is a map-backed store. It shares the typed layer with Badger,
// so records round-trip through the same msgpack encoding.
type Memory struct {
	db
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{db: db{b: &memoryBackend{data: make(map[string][]byte)}}}
}

type memoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (m *memoryBackend) get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (m *memoryBackend) set(key string, value []byte) error {
	raw := make([]byte, len(value))
	copy(raw, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryBackend) delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

func (m *memoryBackend) scan(prefix string) ([]entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		raw := m.data[key]
		value := make([]byte, len(raw))
		copy(value, raw)
		entries = append(entries, entry{key: key, value: value})
	}
	return entries, nil
}

func (m *memoryBackend) deleteAll(keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryBackend) close() error {
	return nil
}
