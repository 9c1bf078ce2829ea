package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryEngine is an in-memory implementation of Engine
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value   []byte
	modTime time.Time
}

// NewMemoryEngine creates a new in-memory persistence engine
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// SetClock replaces the clock used to stamp writes.
func (m *MemoryEngine) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryEngine) Get(_ context.Context, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok {
		return Object{}, ErrKeyNotFound
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return Object{Value: value, ModTime: entry.modTime}, nil
}

func (m *MemoryEngine) Set(_ context.Context, key string, value []byte) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	mod := m.now()
	m.data[key] = memoryEntry{value: stored, modTime: mod}
	return mod, nil
}

// Put stores value with an explicit modification time.
func (m *MemoryEngine) Put(key string, value []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = memoryEntry{value: stored, modTime: modTime}
}

func (m *MemoryEngine) ModTime(_ context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok {
		return time.Time{}, ErrKeyNotFound
	}
	return entry.modTime, nil
}

func (m *MemoryEngine) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryEngine) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryEngine) Close() error {
	return nil
}
