package dispatch

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/searchktools/fast-runtime/core/router"
)

// cachingRouter memoizes Find results per method and path. Cached matches
// share their Params slice, which callers must not modify.
type cachingRouter struct {
	Router

	cache *lru.Cache[string, router.Match]

	hits, misses *atomic.Uint64
}

func newCachingRouter(r Router, size int, hits, misses, evictions *atomic.Uint64) *cachingRouter {
	cache, err := lru.NewWithEvict[string, router.Match](size, func(string, router.Match) {
		evictions.Add(1)
	})
	if err != nil {
		// size is checked positive by the caller
		panic(err)
	}
	return &cachingRouter{
		Router: r,
		cache:  cache,
		hits:   hits,
		misses: misses,
	}
}

func (c *cachingRouter) Find(method, path string) router.Match {
	// path may point into a parser buffer that is reused after the request.
	// The key is an owned copy and the backend matches against it, so the
	// cached Params never alias caller memory.
	key := method + " " + path
	if m, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return m
	}

	c.misses.Add(1)
	m := c.Router.Find(method, key[len(method)+1:])
	c.cache.Add(key, m)
	return m
}

func (c *cachingRouter) Add(method, pattern string, handler any) {
	c.Router.Add(method, pattern, handler)
	c.cache.Purge()
}

func (c *cachingRouter) Remove(method, pattern string) bool {
	removed := c.Router.Remove(method, pattern)
	c.cache.Purge()
	return removed
}
