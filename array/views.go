package array

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/omeview/omv"
)

// stacked joins arrays of identical shape along a new leading axis.
type stacked struct {
	parts []Array
	shape []int
}

// Stack joins arrays of identical shape and type along a new axis 0.
func Stack(parts []Array) (Array, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("cannot stack zero arrays")
	}
	first := parts[0]
	for i, p := range parts[1:] {
		if !SameShape(first, p) || p.DType() != first.DType() {
			return nil, fmt.Errorf("cannot stack array %d of shape %s %s onto shape %s %s",
				i+1, ShapeString(p.Shape()), p.DType(), ShapeString(first.Shape()), first.DType())
		}
	}
	shape := append([]int{len(parts)}, first.Shape()...)
	return &stacked{parts: parts, shape: shape}, nil
}

func (s *stacked) Shape() []int {
	return append([]int{}, s.shape...)
}

func (s *stacked) DType() omv.DataType {
	return s.parts[0].DType()
}

func (s *stacked) Plane(ctx context.Context, idx ...int) (*omv.Plane, error) {
	if _, err := checkIndex(s.shape, idx); err != nil {
		return nil, err
	}
	return s.parts[idx[0]].Plane(ctx, idx[1:]...)
}

// view remaps leading indices onto an underlying array.
type view struct {
	base  Array
	shape []int
	remap func(idx []int) []int
}

func (v *view) Shape() []int {
	return append([]int{}, v.shape...)
}

func (v *view) DType() omv.DataType {
	return v.base.DType()
}

func (v *view) Plane(ctx context.Context, idx ...int) (*omv.Plane, error) {
	if _, err := checkIndex(v.shape, idx); err != nil {
		return nil, err
	}
	return v.base.Plane(ctx, v.remap(idx)...)
}

// SliceAxis fixes a leading axis at index, dropping it from the shape.
func SliceAxis(a Array, axis, index int) (Array, error) {
	shape := a.Shape()
	if axis < 0 || axis >= len(shape)-2 {
		return nil, fmt.Errorf("cannot slice axis %d of array with shape %s", axis, ShapeString(shape))
	}
	if index < 0 || index >= shape[axis] {
		return nil, fmt.Errorf("index %d out of range [0,%d) on axis %d", index, shape[axis], axis)
	}
	newShape := append(append([]int{}, shape[:axis]...), shape[axis+1:]...)
	return &view{
		base:  a,
		shape: newShape,
		remap: func(idx []int) []int {
			full := make([]int, 0, len(idx)+1)
			full = append(full, idx[:axis]...)
			full = append(full, index)
			return append(full, idx[axis:]...)
		},
	}, nil
}

// Squeeze drops the given leading axes, each of which must have extent 1.
func Squeeze(a Array, axes ...int) (Array, error) {
	shape := a.Shape()
	drop := make(map[int]bool, len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= len(shape)-2 {
			return nil, fmt.Errorf("cannot squeeze axis %d of array with shape %s", axis, ShapeString(shape))
		}
		if shape[axis] != 1 {
			return nil, fmt.Errorf("cannot squeeze axis %d with extent %d", axis, shape[axis])
		}
		drop[axis] = true
	}
	if len(drop) == 0 {
		return a, nil
	}
	var newShape []int
	for i, n := range shape {
		if !drop[i] {
			newShape = append(newShape, n)
		}
	}
	leading := len(shape) - 2
	return &view{
		base:  a,
		shape: newShape,
		remap: func(idx []int) []int {
			full := make([]int, leading)
			j := 0
			for i := 0; i < leading; i++ {
				if drop[i] {
					continue
				}
				full[i] = idx[j]
				j++
			}
			return full
		},
	}, nil
}

// StackGrid stacks 2D arrays, given in row-major order, into an array with the
// given leading shape.  An empty leading shape returns the single part.
func StackGrid(parts []Array, leading []int) (Array, error) {
	n := 1
	for _, extent := range leading {
		n *= extent
	}
	if len(parts) != n {
		return nil, fmt.Errorf("leading shape %v needs %d parts, got %d", leading, n, len(parts))
	}
	if len(leading) == 0 {
		return parts[0], nil
	}
	step := n / leading[0]
	rows := make([]Array, leading[0])
	for i := range rows {
		row, err := StackGrid(parts[i*step:(i+1)*step], leading[1:])
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return Stack(rows)
}
