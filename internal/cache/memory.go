package cache

import (
	"sync"
	"time"

	"github.com/pagelens/pagelens/internal/models"
)

type memoryEntry struct {
	data      models.ProductData
	expiresAt time.Time
}

// MemoryStore is a TTL cache held in process memory. Expired entries are
// dropped lazily on read and swept whenever the map is written.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a memory cache whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached result for a URL, if present and fresh.
func (m *MemoryStore) Get(url string) (models.ProductData, bool) {
	m.mu.RLock()
	entry, ok := m.entries[url]
	m.mu.RUnlock()

	if !ok {
		return models.ProductData{}, false
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a Put may have refreshed it.
		if e, ok := m.entries[url]; ok && m.now().After(e.expiresAt) {
			delete(m.entries, url)
		}
		m.mu.Unlock()
		return models.ProductData{}, false
	}
	return entry.data, true
}

// Put stores a result for a URL, replacing any existing entry.
func (m *MemoryStore) Put(url string, data models.ProductData) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[url] = memoryEntry{data: data, expiresAt: now.Add(m.ttl)}
}

// Len returns the number of entries currently held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
