/*
Package planes fetches 2D pixel planes from the server, caches them for the
lifetime of one viewing session and assembles them into per-channel arrays.
*/
package planes

import (
	"sync"

	"github.com/DmitriyVTitov/size"
	"github.com/golang/groupcache/singleflight"
	"github.com/janelia-flyem/omeview/omv"
)

// Cache maps plane coordinates to fetched planes.  It is owned by one session
// and is never evicted, so memory grows with the number of distinct planes
// viewed.  Concurrent misses on one coordinate share a single fetch.
type Cache struct {
	mu     sync.RWMutex
	planes map[omv.PlaneCoord]*omv.Plane
	hits   uint64
	misses uint64

	inflight singleflight.Group
}

// CacheStats reports the cache's size and effectiveness.
type CacheStats struct {
	Entries int
	Bytes   int64
	Hits    uint64
	Misses  uint64
}

func NewCache() *Cache {
	return &Cache{planes: make(map[omv.PlaneCoord]*omv.Plane)}
}

// Get returns the cached plane, if any.
func (c *Cache) Get(coord omv.PlaneCoord) (*omv.Plane, bool) {
	c.mu.RLock()
	p, found := c.planes[coord]
	c.mu.RUnlock()
	return p, found
}

// Put stores a plane, replacing any previous entry.
func (c *Cache) Put(coord omv.PlaneCoord, p *omv.Plane) {
	c.mu.Lock()
	c.planes[coord] = p
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.planes)
}

// GetOrFetch returns the cached plane or calls fetch once, however many
// goroutines ask for the same coordinate at the same time.
func (c *Cache) GetOrFetch(coord omv.PlaneCoord, fetch func() (*omv.Plane, error)) (*omv.Plane, error) {
	c.mu.Lock()
	if p, found := c.planes[coord]; found {
		c.hits++
		c.mu.Unlock()
		return p, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := c.inflight.Do(coord.String(), func() (interface{}, error) {
		// A concurrent flight may have finished between our miss and now.
		if p, found := c.Get(coord); found {
			return p, nil
		}
		p, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Put(coord, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*omv.Plane), nil
}

// Stats returns entry count, approximate memory footprint and hit counts.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Entries: len(c.planes),
		Bytes:   int64(size.Of(c.planes)),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
