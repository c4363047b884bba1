package rois

import (
	"fmt"
	"math"

	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/viewer"
)

// Axis labels recognised when placing a coordinate on a plane.
const (
	LabelZ = "Z"
	LabelT = "T"
)

// Skipped is returned by ConvertShape for geometry the server cannot
// represent.  The export continues without the shape.
type Skipped struct {
	Type   viewer.ShapeType
	Reason string
}

func (s *Skipped) Error() string {
	return fmt.Sprintf("%s not exported: %s", s.Type, s.Reason)
}

// planeOf returns the (Z, T) plane of a vertex.  With no Z or T among the
// labels, the leading coordinates are read positionally: Z is third to last
// and T fourth to last.  labels are right aligned with the vertex.
func planeOf(coord []float64, labels []string) omero.ShapePlane {
	var plane omero.ShapePlane
	n := len(coord)
	leading := n - 2
	if leading <= 0 {
		return plane
	}
	offset := len(labels) - n
	labelled := false
	for i := 0; i < leading; i++ {
		if offset+i < 0 || offset+i >= len(labels) {
			continue
		}
		switch labels[offset+i] {
		case LabelZ:
			plane.TheZ = index(coord[i])
			labelled = true
		case LabelT:
			plane.TheT = index(coord[i])
			labelled = true
		}
	}
	if labelled {
		return plane
	}
	plane.TheZ = index(coord[leading-1])
	if leading >= 2 {
		plane.TheT = index(coord[leading-2])
	}
	return plane
}

func index(v float64) int {
	return int(math.Round(v))
}

func xy(coord []float64) (x, y float64) {
	n := len(coord)
	return coord[n-1], coord[n-2]
}

func points(coords [][]float64) string {
	pts := make([][2]float64, len(coords))
	for i, c := range coords {
		pts[i][0], pts[i][1] = xy(c)
	}
	return omero.FormatPoints(pts)
}

// ConvertPoint maps one viewer point to a server Point.
func ConvertPoint(coord []float64, labels []string) (omero.Point, error) {
	if len(coord) < 2 {
		return omero.Point{}, fmt.Errorf("point needs at least (Y, X), got %v", coord)
	}
	x, y := xy(coord)
	return omero.Point{ShapePlane: planeOf(coord, labels), X: x, Y: y}, nil
}

// ConvertShape maps one drawn shape to a server shape on the plane of its
// first vertex.  Geometry that cannot be represented yields a *Skipped error.
func ConvertShape(s viewer.Shape, labels []string) (omero.Shape, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	plane := planeOf(s.Coords[0], labels)
	switch s.Type {
	case viewer.Line:
		if len(s.Coords) != 2 {
			return nil, &Skipped{s.Type, fmt.Sprintf("needs 2 vertices, got %d", len(s.Coords))}
		}
		x1, y1 := xy(s.Coords[0])
		x2, y2 := xy(s.Coords[1])
		return omero.Line{ShapePlane: plane, X1: x1, Y1: y1, X2: x2, Y2: y2}, nil

	case viewer.Path:
		return omero.Polyline{ShapePlane: plane, Points: points(s.Coords)}, nil

	case viewer.Polygon:
		return omero.Polygon{ShapePlane: plane, Points: points(s.Coords)}, nil

	case viewer.Rectangle:
		x1, y1 := xy(s.Coords[0])
		x2, y2 := xy(s.Coords[1])
		x3, _ := xy(s.Coords[2])
		if x1 != x2 {
			// Rotated rectangles have no server equivalent.
			return omero.Polygon{ShapePlane: plane, Points: points(s.Coords)}, nil
		}
		return omero.Rectangle{ShapePlane: plane, X: x1, Y: y1, Width: x3 - x1, Height: y2 - y1}, nil

	case viewer.Ellipse:
		x1, y1 := xy(s.Coords[0])
		x2, y2 := xy(s.Coords[1])
		x3, _ := xy(s.Coords[2])
		if int(x1) != int(x2) {
			return nil, &Skipped{s.Type, "rotated ellipses are not supported"}
		}
		return omero.Ellipse{
			ShapePlane: plane,
			X:          (x1 + x3) / 2,
			Y:          (y1 + y2) / 2,
			RadiusX:    math.Abs(x3-x1) / 2,
			RadiusY:    math.Abs(y2-y1) / 2,
		}, nil
	}
	return nil, fmt.Errorf("unknown shape type %d", s.Type)
}
