package planes

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omv"
)

// Mode selects how channel arrays are built.
type Mode uint8

const (
	// Lazy defers every plane read until the plane is displayed.
	Lazy Mode = iota

	// Eager reads every plane of the channel before returning.
	Eager
)

func (m Mode) String() string {
	switch m {
	case Lazy:
		return "lazy"
	case Eager:
		return "eager"
	}
	return fmt.Sprintf("unknown mode %d", uint8(m))
}

// LeadingShape returns the leading axes of a channel array: T then Z, each
// only if its extent exceeds 1.  A single-plane image has no leading axes.
func LeadingShape(sizeT, sizeZ int) []int {
	var leading []int
	if sizeT > 1 {
		leading = append(leading, sizeT)
	}
	if sizeZ > 1 {
		leading = append(leading, sizeZ)
	}
	return leading
}

// planeOrder lists (z, t) pairs with T outer and Z inner.
func planeOrder(sizeT, sizeZ int) [][2]int {
	order := make([][2]int, 0, sizeT*sizeZ)
	for t := 0; t < sizeT; t++ {
		for z := 0; z < sizeZ; z++ {
			order = append(order, [2]int{z, t})
		}
	}
	return order
}

// Assemble builds the (T, Z, Y, X) array of channel c, dropping singleton T
// and Z axes.  Both modes produce the same shape.
func Assemble(ctx context.Context, f *Fetcher, img *omero.Image, c int, mode Mode) (array.Array, error) {
	if c < 0 || c >= img.SizeC {
		return nil, fmt.Errorf("channel %d out of range for image with %d channels", c, img.SizeC)
	}
	dtype, err := img.DataType()
	if err != nil {
		return nil, err
	}
	leading := LeadingShape(img.SizeT, img.SizeZ)
	order := planeOrder(img.SizeT, img.SizeZ)

	switch mode {
	case Eager:
		timedLog := omv.NewTimeLog()
		planes := make([]*omv.Plane, len(order))
		for i, zt := range order {
			p, err := f.Fetch(ctx, zt[0], c, zt[1])
			if err != nil {
				return nil, err
			}
			planes[i] = p
		}
		timedLog.Infof("Fetched %d planes of channel %d", len(planes), c)
		return array.NewDense(dtype, leading, img.SizeY, img.SizeX, planes)

	case Lazy:
		parts := make([]array.Array, len(order))
		for i, zt := range order {
			z, t := zt[0], zt[1]
			parts[i] = array.FromPlaneFunc(dtype, img.SizeY, img.SizeX, func(ctx context.Context) (*omv.Plane, error) {
				return f.Fetch(ctx, z, c, t)
			})
		}
		return array.StackGrid(parts, leading)
	}
	return nil, fmt.Errorf("unknown assembly mode %s", mode)
}
