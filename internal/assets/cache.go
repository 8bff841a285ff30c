package assets

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/Faultbox/scenebake/pkg/scene"
)

// Cache holds heap-decoded scenes by path. It is safe for concurrent use.
type Cache struct {
	data *xsync.Map[string, *scene.Scene]

	hits   *xsync.Counter
	misses *xsync.Counter
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data:   xsync.NewMap[string, *scene.Scene](),
		hits:   xsync.NewCounter(),
		misses: xsync.NewCounter(),
	}
}

// Get retrieves a scene from cache.
func (c *Cache) Get(key string) (*scene.Scene, bool) {
	s, ok := c.data.Load(key)
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return s, ok
}

// Set stores a scene in cache.
func (c *Cache) Set(key string, s *scene.Scene) {
	c.data.Store(key, s)
}

// Delete drops one entry.
func (c *Cache) Delete(key string) {
	c.data.Delete(key)
}

// Len returns the number of cached scenes.
func (c *Cache) Len() int {
	return c.data.Size()
}

// Clear drops every entry and resets the statistics.
func (c *Cache) Clear() {
	c.data.Clear()
	c.hits.Reset()
	c.misses.Reset()
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	return int(c.hits.Value()), int(c.misses.Value())
}
