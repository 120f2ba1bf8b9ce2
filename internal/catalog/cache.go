package catalog

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"earapi/internal/model"
)

// Cache is a bounded least-recently-used map from dataset id to resolved resources.
// Entries are never invalidated; the oldest entry is evicted when capacity is reached.
// It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, []model.Resource]
}

// NewCache returns a cache holding at most capacity entries. A capacity below 1 disables caching.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		return &Cache{}
	}
	entries, err := lru.New[string, []model.Resource](capacity)
	if err != nil {
		return &Cache{}
	}
	return &Cache{entries: entries}
}

// Get returns the cached resources for key.
func (c *Cache) Get(key string) ([]model.Resource, bool) {
	if c.entries == nil {
		return nil, false
	}
	return c.entries.Get(key)
}

// Add stores resources under key, replacing any previous value.
func (c *Cache) Add(key string, resources []model.Resource) {
	if c.entries == nil {
		return
	}
	c.entries.Add(key, resources)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
