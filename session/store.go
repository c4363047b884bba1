package session

import (
	"context"
	"strings"

	"github.com/janelia-flyem/omeview/config"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/storage"

	"gocloud.dev/blob"
)

// ZarrStore is the cached store serving zarr images for a session.
type ZarrStore struct {
	*storage.ChunkCache
	bucket *storage.BucketStore
}

// Close releases the underlying bucket.
func (z *ZarrStore) Close() error {
	return z.bucket.Close()
}

// OpenZarrStore opens the configured zarr location.  A non-empty endpoint
// overrides the configured one and may also be a bucket reference such as
// file:///data or s3://bucket/prefix, in which case bucket and root are
// ignored.
func OpenZarrStore(ctx context.Context, cfg config.ZarrConfig, endpoint string, cacheBytes int) (*ZarrStore, error) {
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	var bucket *blob.Bucket
	var err error
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		bucket, err = storage.OpenEndpoint(ctx, endpoint, cfg.Bucket, cfg.Root)
	} else {
		bucket, err = storage.OpenBucket(ctx, endpoint)
	}
	if err != nil {
		return nil, err
	}
	bs := storage.NewBucketStore(bucket)
	omv.Infof("Reading zarr images from %s with a %s read cache\n", endpoint, omv.ByteString(int64(cacheBytes)))
	return &ZarrStore{ChunkCache: storage.NewChunkCache(bs, cacheBytes), bucket: bs}, nil
}
