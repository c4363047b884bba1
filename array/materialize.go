package array

import (
	"context"

	"github.com/janelia-flyem/omeview/omv"
	"golang.org/x/sync/errgroup"
)

// Materialize reads every plane of a, at most concurrency at a time, and
// returns a dense copy.  The first error cancels outstanding reads.
func Materialize(ctx context.Context, a Array, concurrency int) (*Dense, error) {
	if d, ok := a.(*Dense); ok {
		return d, nil
	}
	shape := a.Shape()
	leading := shape[:len(shape)-2]
	n := NumPlanes(a)
	planes := make([]*omv.Plane, n)

	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p, err := a.Plane(gctx, unflatten(leading, i)...)
			if err != nil {
				return err
			}
			planes[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	omv.Debugf("Materialized %d planes of array %s\n", n, ShapeString(shape))
	return NewDense(a.DType(), leading, shape[len(shape)-2], shape[len(shape)-1], planes)
}

// PlaneAt is a convenience for reading a plane where some leading indices may
// exceed the array's rank, as when a viewer with more axes asks a layer with
// fewer.  The trailing len(Shape())-2 entries of point are used.
func PlaneAt(ctx context.Context, a Array, point []int) (*omv.Plane, error) {
	rank := len(a.Shape()) - 2
	if len(point) < rank {
		padded := make([]int, rank)
		copy(padded[rank-len(point):], point)
		point = padded
	}
	return a.Plane(ctx, point[len(point)-rank:]...)
}
