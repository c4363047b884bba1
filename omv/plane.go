package omv

import (
	"fmt"
)

// PlaneCoord identifies one 2D pixel plane of an image.
type PlaneCoord struct {
	Z, C, T int
}

func (p PlaneCoord) String() string {
	return fmt.Sprintf("%d,%d,%d", p.Z, p.C, p.T)
}

// Plane is one Y x X slice of pixel data.  Data holds Width*Height elements of
// Type in little-endian order, row-major with X varying fastest.
type Plane struct {
	Type   DataType
	Width  int
	Height int
	Data   []byte
}

// NewPlane allocates a zeroed plane.
func NewPlane(t DataType, width, height int) *Plane {
	return &Plane{
		Type:   t,
		Width:  width,
		Height: height,
		Data:   make([]byte, width*height*t.Bytes()),
	}
}

// PlaneFromBytes wraps data, checking that its length matches the plane geometry.
func PlaneFromBytes(t DataType, width, height int, data []byte) (*Plane, error) {
	expected := width * height * t.Bytes()
	if len(data) != expected {
		return nil, fmt.Errorf("plane %dx%d of %s needs %d bytes, got %d", width, height, t, expected, len(data))
	}
	return &Plane{Type: t, Width: width, Height: height, Data: data}, nil
}

// Shape returns (Y, X).
func (p *Plane) Shape() []int {
	return []int{p.Height, p.Width}
}

// Value returns the element at (x, y) as a float64.
func (p *Plane) Value(x, y int) float64 {
	return p.Type.ValueAt(p.Data, y*p.Width+x)
}

// Values returns every element as a float64, in row-major order.
func (p *Plane) Values() []float64 {
	n := p.Width * p.Height
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = p.Type.ValueAt(p.Data, i)
	}
	return out
}

// Row returns the raw bytes of row y.
func (p *Plane) Row(y int) []byte {
	stride := p.Width * p.Type.Bytes()
	return p.Data[y*stride : (y+1)*stride]
}

func (p *Plane) String() string {
	return fmt.Sprintf("%s plane %dx%d", p.Type, p.Width, p.Height)
}
