/*
Package array provides N-dimensional arrays of 2D pixel planes.  The trailing
two axes of every array are (Y, X); the leading axes index planes.  Arrays are
either dense, holding every plane in memory, or lazy, producing each plane on
demand through a closure.  Stacking, slicing and squeezing build views without
reading any planes.
*/
package array

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omeview/omv"
)

// Array is an N-d array whose last two axes are (Y, X).
type Array interface {
	// Shape returns the extents of every axis, the last two being Y and X.
	Shape() []int

	// DType returns the element type.
	DType() omv.DataType

	// Plane returns the 2D plane at the given leading index.  len(idx) must be
	// len(Shape()) - 2.
	Plane(ctx context.Context, idx ...int) (*omv.Plane, error)
}

// PlaneFunc produces one plane on demand.
type PlaneFunc func(ctx context.Context) (*omv.Plane, error)

// Rank returns the number of axes of a.
func Rank(a Array) int {
	return len(a.Shape())
}

// NumPlanes returns the number of 2D planes in a.
func NumPlanes(a Array) int {
	shape := a.Shape()
	n := 1
	for _, extent := range shape[:len(shape)-2] {
		n *= extent
	}
	return n
}

// SameShape returns true if a and b have identical shapes.
func SameShape(a, b Array) bool {
	sa, sb := a.Shape(), b.Shape()
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// ShapeString formats a shape like "(2, 3, 512, 512)".
func ShapeString(shape []int) string {
	s := "("
	for i, n := range shape {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", n)
	}
	return s + ")"
}

// checkIndex validates a leading index against a shape and returns its
// row-major flat position.
func checkIndex(shape []int, idx []int) (int, error) {
	leading := shape[:len(shape)-2]
	if len(idx) != len(leading) {
		return 0, fmt.Errorf("array of shape %s needs %d plane indices, got %d", ShapeString(shape), len(leading), len(idx))
	}
	flat := 0
	for i, n := range leading {
		if idx[i] < 0 || idx[i] >= n {
			return 0, fmt.Errorf("index %d out of range [0,%d) on axis %d", idx[i], n, i)
		}
		flat = flat*n + idx[i]
	}
	return flat, nil
}

// unflatten converts a row-major flat plane position to a leading index.
func unflatten(leading []int, flat int) []int {
	idx := make([]int, len(leading))
	for i := len(leading) - 1; i >= 0; i-- {
		idx[i] = flat % leading[i]
		flat /= leading[i]
	}
	return idx
}

// Dense is an array with every plane in memory.
type Dense struct {
	shape  []int
	dtype  omv.DataType
	planes []*omv.Plane
}

// NewDense builds a dense array from planes in row-major order of leading.
func NewDense(dtype omv.DataType, leading []int, height, width int, planes []*omv.Plane) (*Dense, error) {
	shape := append(append([]int{}, leading...), height, width)
	n := 1
	for _, extent := range leading {
		n *= extent
	}
	if len(planes) != n {
		return nil, fmt.Errorf("dense array of shape %s needs %d planes, got %d", ShapeString(shape), n, len(planes))
	}
	for i, p := range planes {
		if p == nil {
			return nil, fmt.Errorf("plane %d of dense array is nil", i)
		}
		if p.Type != dtype || p.Width != width || p.Height != height {
			return nil, fmt.Errorf("plane %d is %s, expected %s plane %dx%d", i, p, dtype, width, height)
		}
	}
	return &Dense{shape: shape, dtype: dtype, planes: planes}, nil
}

func (d *Dense) Shape() []int {
	return append([]int{}, d.shape...)
}

func (d *Dense) DType() omv.DataType {
	return d.dtype
}

func (d *Dense) Plane(ctx context.Context, idx ...int) (*omv.Plane, error) {
	flat, err := checkIndex(d.shape, idx)
	if err != nil {
		return nil, err
	}
	return d.planes[flat], nil
}

// Planes returns every plane in row-major order.
func (d *Dense) Planes() []*omv.Plane {
	return d.planes
}

// Lazy is a 2D array whose single plane is produced on demand.  Each call to
// Plane invokes the closure; deduplication is the closure's business.
type Lazy struct {
	dtype  omv.DataType
	height int
	width  int
	fn     PlaneFunc
}

// FromPlaneFunc wraps a deferred plane read as a 2D array.
func FromPlaneFunc(dtype omv.DataType, height, width int, fn PlaneFunc) *Lazy {
	return &Lazy{dtype: dtype, height: height, width: width, fn: fn}
}

func (l *Lazy) Shape() []int {
	return []int{l.height, l.width}
}

func (l *Lazy) DType() omv.DataType {
	return l.dtype
}

func (l *Lazy) Plane(ctx context.Context, idx ...int) (*omv.Plane, error) {
	if len(idx) != 0 {
		return nil, fmt.Errorf("2D lazy array takes no plane indices, got %d", len(idx))
	}
	p, err := l.fn(ctx)
	if err != nil {
		return nil, err
	}
	if p.Type != l.dtype || p.Width != l.width || p.Height != l.height {
		return nil, fmt.Errorf("deferred read returned %s, expected %s plane %dx%d", p, l.dtype, l.width, l.height)
	}
	return p, nil
}

// FromPlane wraps one plane as a 2D dense array.
func FromPlane(p *omv.Plane) *Dense {
	return &Dense{shape: []int{p.Height, p.Width}, dtype: p.Type, planes: []*omv.Plane{p}}
}
