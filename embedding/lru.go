package embedding

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	cmerrors "github.com/c360/catalogmatch/errors"
)

// lruEntry pairs a cache key with its vector inside the recency list.
type lruEntry struct {
	key string
	vec Vector
}

// LRUCache is an in-process embedding cache with least-recently-used
// eviction. It backs deployments without a shared cache bucket; vectors
// are stored as-is, so callers must not mutate what Get returns.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

// NewLRUCache creates a cache holding at most maxSize vectors.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &LRUCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a cached embedding and marks it as recently used.
func (c *LRUCache) Get(_ context.Context, key string) (Vector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		return nil, fmt.Errorf("cache miss: %q", key)
	}
	c.order.MoveToFront(element)
	return element.Value.(*lruEntry).vec, nil
}

// Put stores an embedding, evicting the least recently used entry when
// the cache is full.
func (c *LRUCache) Put(_ context.Context, key string, vec Vector) error {
	if key == "" {
		return cmerrors.WrapInvalid(
			fmt.Errorf("%w: empty cache key", cmerrors.ErrInvalidInput),
			"embedding", "Put", "key validation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		element.Value.(*lruEntry).vec = vec
		c.order.MoveToFront(element)
		return nil
	}

	c.items[key] = c.order.PushFront(&lruEntry{key: key, vec: vec})
	if len(c.items) > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(*lruEntry).key)
			c.order.Remove(oldest)
		}
	}
	return nil
}

// Len returns the current number of cached vectors.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
