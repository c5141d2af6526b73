package planner

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPlanCacheSize mirrors GraphJin's hardcoded LRU size
// (core/cache.go's lru.New2Q(5000)); here it's the Config-driven default
// rather than a constant baked into the cache constructor.
const DefaultPlanCacheSize = 5000

// Entry is one cached planning verdict, keyed by the ShapeKey string of
// the query's (model, method, shape) triple.
type Entry struct {
	Plan      Plan
	FastPath  FastPath
}

// Cache is the planner's memoized decision table. It never caches compiled
// SQL or parameter values — only the shape-level plan-family verdict, since
// the actual SQL depends on parameter values only through placeholders and
// is otherwise a pure function of (model, method, shape). Grounded on the
// teacher's core/cache.go Cache, which wraps the identical
// hashicorp/golang-lru/v2 TwoQueueCache.
type Cache struct {
	cache *lru.TwoQueueCache[string, Entry]
}

// NewCache builds a Cache with room for size entries (DefaultPlanCacheSize
// when size <= 0).
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultPlanCacheSize
	}
	c, err := lru.New2Q[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Get returns the cached Entry for key, if present.
func (c *Cache) Get(key string) (Entry, bool) {
	return c.cache.Get(key)
}

// Put stores e under key, evicting the least-recently-used entry if the
// cache is full.
func (c *Cache) Put(key string, e Entry) {
	c.cache.Add(key, e)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.cache.Len()
}
