package omero

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/janelia-flyem/omeview/omv"
)

// OME schema namespace used for "@type" in the JSON object model.
const omeNS = "http://www.openmicroscopy.org/Schemas/OME/2016-06#"

// Shape is a server-side shape.  Every shape sits on exactly one Z and T plane.
type Shape interface {
	// Kind returns the OME type name, e.g., "Rectangle".
	Kind() string

	// Plane returns the (Z, T) plane assignment.
	Plane() (z, t int)
}

// ShapePlane holds the plane assignment shared by every shape.
type ShapePlane struct {
	TheZ int `json:"TheZ"`
	TheT int `json:"TheT"`
}

func (p ShapePlane) Plane() (z, t int) {
	return p.TheZ, p.TheT
}

type Point struct {
	ShapePlane
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

type Line struct {
	ShapePlane
	X1 float64 `json:"X1"`
	Y1 float64 `json:"Y1"`
	X2 float64 `json:"X2"`
	Y2 float64 `json:"Y2"`
}

// Polyline is an open path.  Points uses the "x,y x,y ..." form.
type Polyline struct {
	ShapePlane
	Points string `json:"Points"`
}

// Polygon is a closed path.  Points uses the "x,y x,y ..." form.
type Polygon struct {
	ShapePlane
	Points string `json:"Points"`
}

type Rectangle struct {
	ShapePlane
	X      float64 `json:"X"`
	Y      float64 `json:"Y"`
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
}

// Ellipse is given by its centre and radii.
type Ellipse struct {
	ShapePlane
	X       float64 `json:"X"`
	Y       float64 `json:"Y"`
	RadiusX float64 `json:"RadiusX"`
	RadiusY float64 `json:"RadiusY"`
}

func (Point) Kind() string     { return "Point" }
func (Line) Kind() string      { return "Line" }
func (Polyline) Kind() string  { return "Polyline" }
func (Polygon) Kind() string   { return "Polygon" }
func (Rectangle) Kind() string { return "Rectangle" }
func (Ellipse) Kind() string   { return "Ellipse" }

// FormatPoints writes (x, y) pairs as "x,y x,y ...".
func FormatPoints(xy [][2]float64) string {
	parts := make([]string, len(xy))
	for i, p := range xy {
		parts[i] = fmt.Sprintf("%g,%g", p[0], p[1])
	}
	return strings.Join(parts, " ")
}

// ROI is a region of interest attached to an image.
type ROI struct {
	ID      int64
	ImageID int64
	Shapes  []Shape
}

// encodeShape adds "@type" to a shape's fields.
func encodeShape(s Shape) (map[string]interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["@type"] = omeNS + s.Kind()
	return m, nil
}

// MarshalJSON encodes the ROI in the server's JSON object model.
func (roi ROI) MarshalJSON() ([]byte, error) {
	shapes := make([]map[string]interface{}, 0, len(roi.Shapes))
	for _, s := range roi.Shapes {
		m, err := encodeShape(s)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, m)
	}
	obj := map[string]interface{}{
		"@type":  omeNS + "ROI",
		"shapes": shapes,
		"Image": map[string]interface{}{
			"@id":   roi.ImageID,
			"@type": omeNS + "Image",
		},
	}
	if roi.ID != 0 {
		obj["@id"] = roi.ID
	}
	return json.Marshal(obj)
}

// SaveROI persists a new ROI and returns its id.
func (c *Client) SaveROI(ctx context.Context, roi ROI) (int64, error) {
	if c.base() == "" {
		return 0, ErrNotLoggedIn
	}
	if len(roi.Shapes) == 0 {
		return 0, fmt.Errorf("refusing to save ROI without shapes on Image:%d", roi.ImageID)
	}
	var resp struct {
		Data struct {
			ID int64 `json:"@id"`
		} `json:"data"`
	}
	timedLog := omv.NewTimeLog()
	if err := c.postJSON(ctx, c.base()+"m/save/", c.query(false), roi, &resp); err != nil {
		return 0, fmt.Errorf("could not save ROI on Image:%d: %w", roi.ImageID, err)
	}
	timedLog.Debugf("Saved ROI %d with %d shape(s) on Image:%d", resp.Data.ID, len(roi.Shapes), roi.ImageID)
	return resp.Data.ID, nil
}
