package planes

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
)

// PlaneReader reads raw planes through one remote handle.
type PlaneReader interface {
	GetPlane(ctx context.Context, z, c, t int) (*omv.Plane, error)
	Close() error
}

// Source opens a new PlaneReader.  Every call must return an independent
// handle since concurrent fetches may close theirs at any time.
type Source interface {
	Open(ctx context.Context) (PlaneReader, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (PlaneReader, error)

func (f SourceFunc) Open(ctx context.Context) (PlaneReader, error) {
	return f(ctx)
}

// ImageSource opens raw pixels stores on one image.
func ImageSource(client *omero.Client, img *omero.Image) Source {
	return SourceFunc(func(ctx context.Context) (PlaneReader, error) {
		store, err := client.OpenPixels(ctx, img)
		if err != nil {
			return nil, err
		}
		return store, nil
	})
}

// Fetcher reads planes of one image through a Cache.
type Fetcher struct {
	source Source
	cache  *Cache
}

// NewFetcher returns a fetcher.  The cache must only hold planes of the image
// behind source.
func NewFetcher(source Source, cache *Cache) *Fetcher {
	return &Fetcher{source: source, cache: cache}
}

// Cache returns the fetcher's plane cache.
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// Fetch returns the plane at (z, c, t).  A cached plane is returned as is with
// no remote call.  Otherwise a fresh handle is opened, read once and closed.
// Errors are not retried.
func (f *Fetcher) Fetch(ctx context.Context, z, c, t int) (*omv.Plane, error) {
	coord := omv.PlaneCoord{Z: z, C: c, T: t}
	return f.cache.GetOrFetch(coord, func() (*omv.Plane, error) {
		omv.Debugf("get_plane %d %d %d\n", z, c, t)
		reader, err := f.source.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot open pixels for plane %s: %w", coord, err)
		}
		defer reader.Close()
		return reader.GetPlane(ctx, z, c, t)
	})
}
