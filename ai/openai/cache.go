package openai

import (
	"sync"

	"github.com/poiesic/deskrag/ai"
	"github.com/poiesic/deskrag/core"
)

// embedCache is a process-lifetime cache from exact (truncated) text to
// its embedding vector. Keys are BLAKE2b content hashes so the cache never
// retains the raw text. Reads are concurrent; writes are serialized.
// The cache grows without bound until Clear is called.
type embedCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	bytes   int64
}

func newEmbedCache() *embedCache {
	return &embedCache{
		entries: make(map[string][]float32),
	}
}

// get returns the cached vector for the text, if present.
// The returned slice is shared and must not be modified.
func (c *embedCache) get(text string) ([]float32, bool) {
	key := core.ContentKey(text)
	c.mu.RLock()
	defer c.mu.RUnlock()
	vector, ok := c.entries[key]
	return vector, ok
}

func (c *embedCache) put(text string, vector []float32) {
	key := core.ContentKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.bytes += int64(len(key)) + int64(len(vector))*4
	}
	c.entries[key] = vector
}

func (c *embedCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]float32)
	c.bytes = 0
}

func (c *embedCache) stats() ai.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ai.CacheStats{
		Entries:     len(c.entries),
		ApproxBytes: c.bytes,
	}
}
