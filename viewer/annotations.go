package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// annotationSchema describes an annotation file: points, shapes and labels
// layers in stacking order.
const annotationSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["layers"],
	"properties": {
		"layers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type", "data"],
				"properties": {
					"type": {"enum": ["points", "shapes", "labels"]},
					"name": {"type": "string"},
					"data": {"type": "array"},
					"shape_type": {
						"type": "array",
						"items": {"enum": ["line", "path", "polygon", "rectangle", "ellipse"]}
					}
				},
				"allOf": [
					{
						"if": {"properties": {"type": {"const": "points"}}},
						"then": {"properties": {"data": {"items": {"$ref": "#/$defs/coord"}}}}
					},
					{
						"if": {"properties": {"type": {"const": "shapes"}}},
						"then": {
							"properties": {"data": {"items": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/coord"}}}}
						}
					},
					{
						"if": {"properties": {"type": {"const": "labels"}}},
						"then": {"properties": {"data": {"items": {"type": "array", "items": {"type": "integer", "minimum": 0}}}}}
					}
				]
			}
		}
	},
	"$defs": {
		"coord": {"type": "array", "minItems": 2, "items": {"type": "number"}}
	}
}`

var compiledAnnotationSchema = jsonschema.MustCompileString("annotations.json", annotationSchema)

type annotationFile struct {
	Layers []annotationLayer `json:"layers"`
}

type annotationLayer struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	ShapeType []string        `json:"shape_type,omitempty"`
}

// ReadAnnotations decodes and validates an annotation file.  Image layers are
// never part of an annotation file.  A shapes layer with no shapes or no shape
// types is skipped with a warning.
func ReadAnnotations(r io.Reader) ([]Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("bad annotation JSON: %v", err)
	}
	if err := compiledAnnotationSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid annotation file: %v", err)
	}
	var file annotationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("bad annotation JSON: %v", err)
	}
	layers := make([]Layer, 0, len(file.Layers))
	for i, al := range file.Layers {
		l, err := al.decode()
		if err != nil {
			return nil, fmt.Errorf("layer %d (%q): %v", i, al.Name, err)
		}
		if l == nil {
			omv.Warningf("Skipping layer %d (%q): %d shape types for %d shapes\n", i, al.Name, len(al.ShapeType), al.count())
			continue
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// count returns the number of items in the layer's data.
func (al annotationLayer) count() int {
	var items []json.RawMessage
	if err := json.Unmarshal(al.Data, &items); err != nil {
		return 0
	}
	return len(items)
}

// defaultNames name layers saved without a name.
var defaultNames = map[Kind]string{
	PointsKind: "Points",
	ShapesKind: "Shapes",
	LabelsKind: "Labels",
}

// decode returns the layer described by al, or nil for a shapes layer that
// holds nothing to draw.
func (al annotationLayer) decode() (Layer, error) {
	kind, err := ParseKind(al.Type)
	if err != nil {
		return nil, err
	}
	name := al.Name
	if name == "" {
		name = defaultNames[kind]
	}
	meta := LayerMeta{Name: name, Visible: true}
	switch kind {
	case PointsKind:
		var points [][]float64
		if err := json.Unmarshal(al.Data, &points); err != nil {
			return nil, err
		}
		return &PointsLayer{LayerMeta: meta, Data: points}, nil
	case ShapesKind:
		var coords [][][]float64
		if err := json.Unmarshal(al.Data, &coords); err != nil {
			return nil, err
		}
		if len(coords) == 0 || len(al.ShapeType) == 0 {
			return nil, nil
		}
		if len(coords) != len(al.ShapeType) {
			return nil, fmt.Errorf("%d shapes but %d shape types", len(coords), len(al.ShapeType))
		}
		shapes := make([]Shape, len(coords))
		for i, c := range coords {
			t, err := ParseShapeType(al.ShapeType[i])
			if err != nil {
				return nil, err
			}
			shapes[i] = Shape{Type: t, Coords: c}
			if err := shapes[i].Validate(); err != nil {
				return nil, fmt.Errorf("shape %d: %v", i, err)
			}
		}
		return &ShapesLayer{LayerMeta: meta, Shapes: shapes}, nil
	case LabelsKind:
		var rows [][]uint32
		if err := json.Unmarshal(al.Data, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return &LabelsLayer{LayerMeta: meta}, nil
		}
		width := len(rows[0])
		plane := omv.NewPlane(omv.T_uint32, width, len(rows))
		for y, row := range rows {
			if len(row) != width {
				return nil, fmt.Errorf("labels row %d has %d values, expected %d", y, len(row), width)
			}
			for x, label := range row {
				omv.T_uint32.PutValueAt(plane.Data, y*width+x, float64(label))
			}
		}
		return &LabelsLayer{LayerMeta: meta, Data: array.FromPlane(plane)}, nil
	}
	return nil, fmt.Errorf("%s layers cannot be read from an annotation file", kind)
}

// WriteAnnotations encodes the annotation layers of layers.  Image layers are
// skipped.  Labels layers must be 2D.
func WriteAnnotations(ctx context.Context, w io.Writer, layers []Layer) error {
	file := annotationFile{Layers: []annotationLayer{}}
	for _, l := range layers {
		al := annotationLayer{Type: l.Kind().String(), Name: l.Meta().Name}
		var data interface{}
		switch layer := l.(type) {
		case *ImageLayer:
			continue
		case *PointsLayer:
			points := layer.Data
			if points == nil {
				points = [][]float64{}
			}
			data = points
		case *ShapesLayer:
			coords := make([][][]float64, len(layer.Shapes))
			al.ShapeType = make([]string, len(layer.Shapes))
			for i, s := range layer.Shapes {
				coords[i] = s.Coords
				al.ShapeType[i] = s.Type.String()
			}
			data = coords
		case *LabelsLayer:
			rows, err := labelRows(ctx, layer)
			if err != nil {
				return fmt.Errorf("labels layer %q: %v", layer.Name, err)
			}
			data = rows
		default:
			return fmt.Errorf("unknown layer type %T", l)
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		al.Data = raw
		file.Layers = append(file.Layers, al)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}

func labelRows(ctx context.Context, l *LabelsLayer) ([][]uint64, error) {
	rows := [][]uint64{}
	if l.Data == nil {
		return rows, nil
	}
	if array.Rank(l.Data) != 2 {
		return nil, fmt.Errorf("only 2D labels can be saved, got shape %s", array.ShapeString(l.Data.Shape()))
	}
	plane, err := l.Data.Plane(ctx)
	if err != nil {
		return nil, err
	}
	for y := 0; y < plane.Height; y++ {
		row := make([]uint64, plane.Width)
		for x := range row {
			row[x] = uint64(plane.Value(x, y))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadAnnotations reads an annotation file and adds its layers to v.
func (v *Viewer) LoadAnnotations(filename string) ([]Layer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	layers, err := ReadAnnotations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	for _, l := range layers {
		switch layer := l.(type) {
		case *PointsLayer:
			v.add(layer)
		case *ShapesLayer:
			v.add(layer)
		case *LabelsLayer:
			v.AddLabels(layer)
		}
	}
	omv.Infof("Loaded %d annotation layer(s) from %s\n", len(layers), filename)
	return layers, nil
}

// SaveAnnotations writes every annotation layer of v to filename.
func (v *Viewer) SaveAnnotations(ctx context.Context, filename string) error {
	var buf bytes.Buffer
	if err := WriteAnnotations(ctx, &buf, v.Layers()); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return err
	}
	omv.Infof("Saved annotations to %s\n", filename)
	return nil
}
