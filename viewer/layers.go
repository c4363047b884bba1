package viewer

import (
	"fmt"

	"github.com/janelia-flyem/omeview/array"
)

// Kind is the closed set of layer types a viewer holds.
type Kind uint8

const (
	ImageKind Kind = iota
	PointsKind
	ShapesKind
	LabelsKind
)

var kindNames = map[Kind]string{
	ImageKind:  "image",
	PointsKind: "points",
	ShapesKind: "shapes",
	LabelsKind: "labels",
}

func (k Kind) String() string {
	if name, found := kindNames[k]; found {
		return name
	}
	return fmt.Sprintf("unknown layer kind %d", k)
}

// ParseKind returns the layer kind with the given name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown layer type %q", s)
}

// LayerMeta holds what every layer has regardless of kind.
type LayerMeta struct {
	Name    string
	Visible bool
}

func (m *LayerMeta) Meta() *LayerMeta {
	return m
}

// Layer is one of *ImageLayer, *PointsLayer, *ShapesLayer or *LabelsLayer.
type Layer interface {
	Kind() Kind
	Meta() *LayerMeta
}

// Colormap is a linear ramp through Colors, each an RGB triple in [0, 1].
type Colormap struct {
	Name   string
	Colors [][3]float64
}

// Ramp returns a two-stop colormap from black to rgb.
func Ramp(name string, rgb [3]float64) Colormap {
	return Colormap{Name: name, Colors: [][3]float64{{0, 0, 0}, rgb}}
}

// Map returns the colour at v in [0, 1].  Values outside are clamped.
func (c Colormap) Map(v float64) [3]float64 {
	n := len(c.Colors)
	switch {
	case n == 0:
		return [3]float64{v, v, v}
	case n == 1 || v <= 0:
		return c.Colors[0]
	case v >= 1:
		return c.Colors[n-1]
	}
	pos := v * float64(n-1)
	i := int(pos)
	frac := pos - float64(i)
	var out [3]float64
	for k := range out {
		out[k] = c.Colors[i][k] + frac*(c.Colors[i+1][k]-c.Colors[i][k])
	}
	return out
}

// Blending modes.
const (
	BlendTranslucent = "translucent"
	BlendAdditive    = "additive"
)

// ImageLayer displays one channel.  Data holds a single array or the levels
// of a pyramid from highest to lowest resolution.
type ImageLayer struct {
	LayerMeta
	Data                []array.Array
	Colormap            Colormap
	Blending            string
	Scale               []float64
	ContrastLimits      [2]float64
	ContrastLimitsRange [2]float64
}

func (l *ImageLayer) Kind() Kind { return ImageKind }

// Shape returns the shape of the highest resolution level.
func (l *ImageLayer) Shape() []int {
	if len(l.Data) == 0 {
		return nil
	}
	return l.Data[0].Shape()
}

// Multiscale reports whether the layer holds more than one resolution level.
func (l *ImageLayer) Multiscale() bool {
	return len(l.Data) > 1
}

// Normalize maps v into [0, 1] through the contrast limits.
func (l *ImageLayer) Normalize(v float64) float64 {
	lo, hi := l.ContrastLimits[0], l.ContrastLimits[1]
	if hi <= lo {
		if v > lo {
			return 1
		}
		return 0
	}
	n := (v - lo) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// LevelFor returns the coarsest level whose Y and X extents still cover a
// height x width viewport.  Level 0 is returned when none does.
func (l *ImageLayer) LevelFor(height, width int) int {
	best := 0
	for i, level := range l.Data {
		shape := level.Shape()
		if len(shape) < 2 {
			continue
		}
		if shape[len(shape)-2] >= height && shape[len(shape)-1] >= width {
			best = i
		}
	}
	return best
}

// PointsLayer holds points, each an ordered coordinate list ending in (Y, X).
type PointsLayer struct {
	LayerMeta
	Data [][]float64
}

func (l *PointsLayer) Kind() Kind { return PointsKind }

// ShapeType is the closed set of drawable shape variants.
type ShapeType uint8

const (
	Line ShapeType = iota
	Path
	Polygon
	Rectangle
	Ellipse
)

var shapeTypeNames = map[ShapeType]string{
	Line:      "line",
	Path:      "path",
	Polygon:   "polygon",
	Rectangle: "rectangle",
	Ellipse:   "ellipse",
}

func (t ShapeType) String() string {
	if name, found := shapeTypeNames[t]; found {
		return name
	}
	return fmt.Sprintf("unknown shape type %d", t)
}

// ParseShapeType returns the shape type with the given name.
func ParseShapeType(s string) (ShapeType, error) {
	for t, name := range shapeTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown shape type %q", s)
}

// Shape is one drawn annotation.  Coords are ordered vertices, each ending in
// (Y, X) with optional leading (T, Z).  Rectangles and ellipses carry their 4
// bounding corners anti-clockwise from the top left.
type Shape struct {
	Type   ShapeType
	Coords [][]float64
}

// Validate checks that the shape has vertices of one dimensionality.
func (s Shape) Validate() error {
	if len(s.Coords) == 0 {
		return fmt.Errorf("%s has no vertices", s.Type)
	}
	nd := len(s.Coords[0])
	if nd < 2 {
		return fmt.Errorf("%s vertex needs at least (Y, X), got %v", s.Type, s.Coords[0])
	}
	for _, c := range s.Coords[1:] {
		if len(c) != nd {
			return fmt.Errorf("%s mixes %d and %d dimensional vertices", s.Type, nd, len(c))
		}
	}
	switch s.Type {
	case Rectangle, Ellipse:
		if len(s.Coords) != 4 {
			return fmt.Errorf("%s needs 4 corners, got %d", s.Type, len(s.Coords))
		}
	}
	return nil
}

// ShapesLayer holds drawn shapes in drawing order.
type ShapesLayer struct {
	LayerMeta
	Shapes []Shape
}

func (l *ShapesLayer) Kind() Kind { return ShapesKind }

// LabelsLayer holds an integer segmentation.  Labels are never exported.
type LabelsLayer struct {
	LayerMeta
	Data array.Array
}

func (l *LabelsLayer) Kind() Kind { return LabelsKind }
