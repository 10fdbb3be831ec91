package session

import (
	"container/list"
	"sync"

	"github.com/CARTAvis/carta-backend-sub003/internal/loader"
)

// loaderCacheCapacity is the per-session loader LRU capacity from
// spec.md §3's data model.
const loaderCacheCapacity = 25

type loaderEntry struct {
	key    string
	loader loader.FileLoader
}

// loaderCache is a per-session LRU keyed by "dir/file", closing evicted
// loaders. No third-party LRU package appears anywhere in the example
// corpus (the pack's cache needs are all satisfied by sync.Map or plain
// maps), so this is a small container/list + map implementation in the
// teacher's own style rather than a borrowed one.
type loaderCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

func newLoaderCache(capacity int) *loaderCache {
	if capacity <= 0 {
		capacity = loaderCacheCapacity
	}
	return &loaderCache{capacity: capacity, ll: list.New(), index: make(map[string]*list.Element)}
}

// Get returns the cached loader for key, if present, promoting it to
// most-recently-used.
func (c *loaderCache) Get(key string) (loader.FileLoader, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*loaderEntry).loader, true
}

// Put installs l under key, evicting and closing the least-recently-used
// entry if the cache is over capacity.
func (c *loaderCache) Put(key string, l loader.FileLoader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*loaderEntry).loader = l
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&loaderEntry{key: key, loader: l})
	c.index[key] = el
	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Remove evicts key immediately, e.g. when its backing image is closed
// or modified on disk.
func (c *loaderCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.removeElement(el)
	}
}

func (c *loaderCache) evictOldest() {
	el := c.ll.Back()
	if el != nil {
		c.removeElement(el)
	}
}

func (c *loaderCache) removeElement(el *list.Element) {
	entry := el.Value.(*loaderEntry)
	c.ll.Remove(el)
	delete(c.index, entry.key)
	entry.loader.Close()
}

// Len reports the number of cached loaders, for tests.
func (c *loaderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
