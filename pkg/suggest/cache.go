package suggest

import (
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

type lookupMode uint8

const (
	modeSuggest lookupMode = iota
	modePrefix
	modeSubstring
	modeFuzzy
)

type cacheKey struct {
	mode  lookupMode
	query string
	limit int
}

// resultCache memoizes lookups of one immutable index. A nil cache is a
// valid no-op, used when the configured size is zero.
type resultCache struct {
	lru    *lru.Cache[cacheKey, []Suggestion]
	hits   atomic.Int64
	misses atomic.Int64
}

func newResultCache(size int) *resultCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[cacheKey, []Suggestion](size)
	if err != nil {
		log.Warnf("Suggestion cache disabled: %v", err)
		return nil
	}
	return &resultCache{lru: c}
}

func (c *resultCache) get(key cacheKey) ([]Suggestion, bool) {
	if c == nil {
		return nil, false
	}
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return slices.Clone(v), true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *resultCache) add(key cacheKey, v []Suggestion) {
	if c == nil {
		return
	}
	c.lru.Add(key, slices.Clone(v))
}

func (c *resultCache) stats() map[string]int {
	if c == nil {
		return map[string]int{"cacheEntries": 0, "cacheHits": 0, "cacheMisses": 0}
	}
	return map[string]int{
		"cacheEntries": c.lru.Len(),
		"cacheHits":    int(c.hits.Load()),
		"cacheMisses":  int(c.misses.Load()),
	}
}
