package sentiment

import "sync"

// Cache memoizes score vectors for exact (speaker, text) pairs. Repeated
// filler confirmations ("okay", "right") are common in live speech, and a
// hit saves a remote scoring call.
//
// Eviction is by insertion order: when full, the entry inserted earliest is
// removed. A Get never refreshes an entry's position, so this is FIFO, not
// LRU.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]Scores
	order   []string
}

// NewCache creates a cache bounded to maxSize entries.
func NewCache(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		entries: make(map[string]Scores, maxSize),
	}
}

func cacheKey(text, speaker string) string {
	return speaker + ":" + text
}

// Get returns the cached scores for the pair, if present.
func (c *Cache) Get(text, speaker string) (Scores, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scores, ok := c.entries[cacheKey(text, speaker)]
	return scores, ok
}

// Set stores scores for the pair, evicting the oldest-inserted entry first
// if the cache is at capacity. Updating an existing key keeps its original
// insertion position.
func (c *Cache) Set(text, speaker string, scores Scores) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(text, speaker)
	if _, exists := c.entries[key]; exists {
		c.entries[key] = scores
		return
	}

	if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = scores
	c.order = append(c.order, key)
}

// Size returns the current number of cached entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Scores, c.maxSize)
	c.order = nil
}
