package zarr

import (
	"context"
	"fmt"
	"path"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/storage"
	"golang.org/x/sync/errgroup"
)

// Pyramid is one channel of a multi-resolution image, highest resolution
// first.  Every level has the same axes.
type Pyramid struct {
	Levels []array.Array
	Paths  []string
	Attrs  *Attrs
}

// ImageGroup returns the group path of an image in the store.
func ImageGroup(imageID int64) string {
	return fmt.Sprintf("%d.zarr", imageID)
}

// channelView slices channel c out of a (T, C, Z, Y, X) level and drops
// singleton T and Z axes.
func channelView(level array.Array, c int) (array.Array, error) {
	shape := level.Shape()
	if len(shape) != 5 {
		return nil, fmt.Errorf("expected a 5D (T, C, Z, Y, X) array, got shape %v", shape)
	}
	if c < 0 || c >= shape[1] {
		return nil, fmt.Errorf("channel %d out of range for %d channels", c, shape[1])
	}
	sliced, err := array.SliceAxis(level, 1, c)
	if err != nil {
		return nil, err
	}
	var singletons []int
	if shape[0] == 1 {
		singletons = append(singletons, 0)
	}
	if shape[2] == 1 {
		singletons = append(singletons, 1)
	}
	return array.Squeeze(sliced, singletons...)
}

// LoadPyramid opens the requested resolution levels of an image and returns
// lazy arrays for one channel.  Any level failing to open fails the load.
func LoadPyramid(ctx context.Context, store storage.Store, imageID int64, channel int, sel string) (*Pyramid, error) {
	group := ImageGroup(imageID)
	attrs, err := ReadAttrs(ctx, store, group)
	if err != nil {
		return nil, fmt.Errorf("cannot read attributes of %q: %w", group, err)
	}
	paths, err := ParseResolutions(sel, attrs.First())
	if err != nil {
		return nil, err
	}

	levels := make([]array.Array, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			level, err := Open(gctx, store, path.Join(group, p))
			if err != nil {
				return err
			}
			view, err := channelView(level, channel)
			if err != nil {
				return fmt.Errorf("level %q of %q: %v", p, group, err)
			}
			levels[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := 1; i < len(levels); i++ {
		prev, cur := levels[i-1].Shape(), levels[i].Shape()
		if len(prev) != len(cur) {
			return nil, fmt.Errorf("level %q has shape %v, inconsistent with level %q shape %v", paths[i], cur, paths[i-1], prev)
		}
	}
	omv.Infof("Loaded %d resolution level(s) %v of channel %d from %q\n", len(levels), paths, channel, group)
	return &Pyramid{Levels: levels, Paths: paths, Attrs: attrs}, nil
}
