/*
Package storage opens object storage buckets and reads keys from them through
a bounded client-side cache.
*/
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
	"github.com/janelia-flyem/omeview/omv"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned by Store.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Store is read-only key/value access to an object store.
type Store interface {
	// Get returns the value of key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}

// BucketStore reads keys directly from a bucket.
type BucketStore struct {
	bucket *blob.Bucket
}

func NewBucketStore(bucket *blob.Bucket) *BucketStore {
	return &BucketStore{bucket: bucket}
}

func (s *BucketStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read of %q failed: %v", key, err)
	}
	return data, nil
}

// Close closes the underlying bucket.
func (s *BucketStore) Close() error {
	return s.bucket.Close()
}

// freecache rejects entries larger than 1/1024 of its size.
const maxEntryFraction = 1024

// ChunkCache is a Store that remembers recent reads of another Store in a
// fixed-size freecache.  Values larger than 1/1024 of the cache are passed
// through uncached.  Missing keys are remembered too.
type ChunkCache struct {
	store Store
	cache *freecache.Cache
	size  int
}

// missing marks a key known to be absent.  Real values are never empty since
// an empty chunk is not a valid encoding.
var missing = []byte{}

// NewChunkCache wraps store with a read cache of the given size in bytes.
func NewChunkCache(store Store, size int) *ChunkCache {
	return &ChunkCache{
		store: store,
		cache: freecache.NewCache(size),
		size:  size,
	}
}

func (c *ChunkCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.cache.Get([]byte(key))
	if err == nil {
		if len(value) == 0 {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return value, nil
	}
	if err != freecache.ErrNotFound {
		omv.Errorf("chunk cache get of %q: %v\n", key, err)
	}

	timedLog := omv.NewTimeLog()
	value, err = c.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		c.cache.Set([]byte(key), missing, 0)
		return nil, err
	case err != nil:
		return nil, err
	}
	timedLog.Debugf("Read %q (%s)", key, omv.ByteString(int64(len(value))))
	if len(value) > 0 && len(value) < c.size/maxEntryFraction {
		if err := c.cache.Set([]byte(key), value, 0); err != nil {
			omv.Debugf("not caching %q: %v\n", key, err)
		}
	}
	return value, nil
}

// CacheStats reports freecache usage.
type CacheStats struct {
	Size        int
	Entries     int64
	HitRate     float64
	Evicted     int64
	Overwritten int64
}

func (c *ChunkCache) Stats() CacheStats {
	return CacheStats{
		Size:        c.size,
		Entries:     c.cache.EntryCount(),
		HitRate:     c.cache.HitRate(),
		Evicted:     c.cache.EvacuateCount(),
		Overwritten: c.cache.OverwriteCount(),
	}
}
