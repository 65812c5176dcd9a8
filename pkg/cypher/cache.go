package cypher

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultParseCacheSize is the number of parsed queries kept when the
// executor is not given a cache explicitly.
const DefaultParseCacheSize = 256

// ParseCache memoizes Parse by query text. Parsed queries are immutable, so
// one *Query is safely shared by every caller that hits the same text.
// Failed parses are not cached.
type ParseCache struct {
	entries *lru.Cache[string, *Query]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewParseCache creates a cache holding up to size queries.
func NewParseCache(size int) (*ParseCache, error) {
	entries, err := lru.New[string, *Query](size)
	if err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return &ParseCache{entries: entries}, nil
}

// MustParseCache is like NewParseCache but panics on an invalid size.
func MustParseCache(size int) *ParseCache {
	c, err := NewParseCache(size)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse returns the cached Query for text, parsing it on a miss. The bool
// reports whether the result came from the cache.
func (c *ParseCache) Parse(text string) (*Query, bool, error) {
	if q, ok := c.entries.Get(text); ok {
		c.hits.Add(1)
		return q, true, nil
	}
	c.misses.Add(1)
	q, err := Parse(text)
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(text, q)
	return q, false, nil
}

// Len returns the number of cached queries.
func (c *ParseCache) Len() int {
	return c.entries.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *ParseCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every entry.
func (c *ParseCache) Purge() {
	c.entries.Purge()
}
