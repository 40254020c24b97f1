package cache

import (
	"sort"
	"sync"

	"taskmaster/backend"
)

// Group holds one cache per key, such as one task cache per project.
// Caches are created on first use.
type Group[E backend.Entity, N any, P any] struct {
	mu      sync.Mutex
	caches  map[string]*Cache[E, N, P]
	factory func(key string) *Cache[E, N, P]
}

// NewGroup creates a group whose caches are built by factory.
func NewGroup[E backend.Entity, N any, P any](factory func(key string) *Cache[E, N, P]) *Group[E, N, P] {
	return &Group[E, N, P]{
		caches:  make(map[string]*Cache[E, N, P]),
		factory: factory,
	}
}

// Get returns the cache for key, creating it if needed.
func (g *Group[E, N, P]) Get(key string) *Cache[E, N, P] {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.caches[key]
	if !ok {
		c = g.factory(key)
		g.caches[key] = c
	}
	return c
}

// Keys returns the keys of the caches created so far, sorted.
func (g *Group[E, N, P]) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.caches))
	for k := range g.caches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prime splits items by keyOf and primes each key's cache with its share.
// Keys listed in keys but absent from items are primed empty.
func (g *Group[E, N, P]) Prime(items []E, keyOf func(E) string, keys ...string) {
	byKey := make(map[string][]E, len(keys))
	for _, k := range keys {
		byKey[k] = nil
	}
	for _, e := range items {
		k := keyOf(e)
		byKey[k] = append(byKey[k], e)
	}
	for k, share := range byKey {
		g.Get(k).Prime(share)
	}
}

// InvalidateAll marks every cache in the group stale.
func (g *Group[E, N, P]) InvalidateAll() {
	g.mu.Lock()
	caches := make([]*Cache[E, N, P], 0, len(g.caches))
	for _, c := range g.caches {
		caches = append(caches, c)
	}
	g.mu.Unlock()
	for _, c := range caches {
		c.Invalidate()
	}
}
