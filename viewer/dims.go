package viewer

import (
	"fmt"
	"strconv"
	"sync"
)

// Dims is the viewer's navigable dimension state.  Axes are numbered from the
// slowest varying; the last two are always (Y, X).
type Dims struct {
	mu     sync.RWMutex
	labels []string
	point  []int
	extent []int
}

// NDim returns the number of axes.
func (d *Dims) NDim() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.labels)
}

// fit grows the dims to cover shape.  New axes are added at the front, so
// existing labels and positions stay attached to the same trailing axes.
func (d *Dims) fit(shape []int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if grow := len(shape) - len(d.labels); grow > 0 {
		labels := make([]string, grow)
		point := make([]int, grow)
		extent := make([]int, grow)
		d.labels = append(labels, d.labels...)
		d.point = append(point, d.point...)
		d.extent = append(extent, d.extent...)
		for i := range d.labels {
			if i < grow || d.labels[i] == strconv.Itoa(i-grow) {
				d.labels[i] = strconv.Itoa(i)
			}
		}
	}
	offset := len(d.labels) - len(shape)
	for i, n := range shape {
		if n > d.extent[offset+i] {
			d.extent[offset+i] = n
		}
	}
}

func (d *Dims) checkAxis(axis int) error {
	if axis < 0 || axis >= len(d.labels) {
		return fmt.Errorf("axis %d out of range for %d dims", axis, len(d.labels))
	}
	return nil
}

// SetAxisLabel names an axis.
func (d *Dims) SetAxisLabel(axis int, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAxis(axis); err != nil {
		return err
	}
	d.labels[axis] = label
	return nil
}

// AxisLabels returns a copy of the axis labels.
func (d *Dims) AxisLabels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string{}, d.labels...)
}

// SetPoint moves the slider of an axis, clamped to the axis extent.
func (d *Dims) SetPoint(axis, pos int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAxis(axis); err != nil {
		return err
	}
	if pos >= d.extent[axis] {
		pos = d.extent[axis] - 1
	}
	if pos < 0 {
		pos = 0
	}
	d.point[axis] = pos
	return nil
}

// Step moves the slider of an axis by delta.
func (d *Dims) Step(axis, delta int) error {
	d.mu.RLock()
	if err := d.checkAxis(axis); err != nil {
		d.mu.RUnlock()
		return err
	}
	pos := d.point[axis] + delta
	d.mu.RUnlock()
	return d.SetPoint(axis, pos)
}

// Point returns a copy of the slider positions.
func (d *Dims) Point() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int{}, d.point...)
}

// Extent returns a copy of the per-axis extents.
func (d *Dims) Extent() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int{}, d.extent...)
}

// AxisOf returns the index of the axis with the given label, or -1.
func (d *Dims) AxisOf(label string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i, l := range d.labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Leading returns the slider positions of every axis but (Y, X).
func (d *Dims) Leading() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.point) < 2 {
		return nil
	}
	return append([]int{}, d.point[:len(d.point)-2]...)
}
