// Package cache provides short-lived storage for extracted product results.
// Entries are keyed by the raw request URL and expire after a fixed TTL, so
// repeat requests for the same product page skip the fetch and AI stages.
package cache

import "github.com/pagelens/pagelens/internal/models"

// Store is the interface shared by the in-memory and SQLite-backed caches.
// A Get after the entry's TTL has elapsed is a miss. Implementations never
// return errors to callers; a cache failure is just a miss.
type Store interface {
	// Get returns the cached result for a URL, if present and fresh.
	Get(url string) (models.ProductData, bool)
	// Put stores a result for a URL, replacing any existing entry.
	Put(url string, data models.ProductData)
	// Len returns the number of entries currently held, including expired
	// entries not yet reaped. Used for health reporting only.
	Len() int
	// Close releases any underlying resources.
	Close() error
}
