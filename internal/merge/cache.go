package merge

import (
	"fmt"
	"sync"
)

// maxCacheCapacity bounds the up-front reservation; anything larger is a
// configuration mistake rather than a real file count.
const maxCacheCapacity = 1 << 28

// HashCache stores the digests seen during one run for deduplication
type HashCache struct {
	mu     sync.Mutex
	hashes map[Digest]struct{}
}

// NewHashCache creates a cache with room reserved for capacity digests
func NewHashCache(capacity int) (c *HashCache, err error) {
	if capacity <= 0 || capacity > maxCacheCapacity {
		return nil, fmt.Errorf("%w: hash cache capacity %d out of range (1..%d)", ErrStartup, capacity, maxCacheCapacity)
	}

	// Only catches sizes the runtime rejects outright. A real out-of-memory
	// is fatal.
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("%w: reserving hash cache for %d entries: %v", ErrStartup, capacity, r)
		}
	}()

	return &HashCache{hashes: make(map[Digest]struct{}, capacity)}, nil
}

// Insert records d and reports whether it was seen for the first time.
func (c *HashCache) Insert(d Digest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.hashes[d]; seen {
		return false
	}
	c.hashes[d] = struct{}{}
	return true
}

func (c *HashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hashes)
}
