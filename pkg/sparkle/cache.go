package sparkle

import "sync"

// CandidateCache holds the validated item per bundle id from the last
// check so an in-process install applies the version that was shown.
type CandidateCache struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewCandidateCache() *CandidateCache {
	return &CandidateCache{items: make(map[string]Item)}
}

func (c *CandidateCache) Put(bundleID string, item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[bundleID] = item
}

func (c *CandidateCache) Get(bundleID string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[bundleID]
	return item, ok
}

func (c *CandidateCache) Delete(bundleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, bundleID)
}

func (c *CandidateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
