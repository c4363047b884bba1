package viewer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omv"
)

func testImage(t *testing.T, leading []int, name string) *ImageLayer {
	n := 1
	for _, e := range leading {
		n *= e
	}
	planes := make([]*omv.Plane, n)
	for i := range planes {
		planes[i] = omv.NewPlane(omv.T_uint8, 4, 3)
	}
	d, err := array.NewDense(omv.T_uint8, leading, 3, 4, planes)
	if err != nil {
		t.Fatal(err)
	}
	return &ImageLayer{LayerMeta: LayerMeta{Name: name, Visible: true}, Data: []array.Array{d}}
}

func TestDims(t *testing.T) {
	v := New()
	if _, err := v.AddImage(testImage(t, []int{5}, "a")); err != nil {
		t.Fatal(err)
	}
	if got := v.Dims.AxisLabels(); !reflect.DeepEqual(got, []string{"0", "1", "2"}) {
		t.Errorf("bad default labels %v\n", got)
	}
	if err := v.Dims.SetAxisLabel(0, "Z"); err != nil {
		t.Fatal(err)
	}
	if err := v.Dims.SetAxisLabel(3, "X"); err == nil {
		t.Errorf("expected error labelling a missing axis\n")
	}
	v.Dims.SetPoint(0, 9)
	if got := v.Dims.Point(); got[0] != 4 {
		t.Errorf("slider should clamp to extent, got %v\n", got)
	}
	v.Dims.Step(0, -2)
	if got := v.Dims.Point()[0]; got != 2 {
		t.Errorf("expected slider at 2 after step, got %d\n", got)
	}

	// a higher rank layer adds axes in front
	if _, err := v.AddImage(testImage(t, []int{2, 5}, "b")); err != nil {
		t.Fatal(err)
	}
	if got := v.Dims.AxisLabels(); !reflect.DeepEqual(got, []string{"0", "Z", "2", "3"}) {
		t.Errorf("labels after growth %v\n", got)
	}
	if got := v.Dims.Point(); !reflect.DeepEqual(got, []int{0, 2, 0, 0}) {
		t.Errorf("positions after growth %v\n", got)
	}
	if got := v.Dims.AxisOf("Z"); got != 1 {
		t.Errorf("AxisOf(Z) = %d\n", got)
	}
}

func TestLayers(t *testing.T) {
	v := New()
	v.AddImage(testImage(t, nil, "DAPI"))
	v.AddImage(testImage(t, nil, "DAPI"))
	v.AddPoints("", [][]float64{{1, 2}})
	if _, err := v.AddShapes("", []Shape{{Type: Rectangle, Coords: [][]float64{{0, 0}, {1, 0}}}}); err == nil {
		t.Errorf("expected error for rectangle with 2 corners\n")
	}
	if _, err := v.AddImage(&ImageLayer{}); err == nil {
		t.Errorf("expected error for image layer without data\n")
	}

	var names []string
	for _, l := range v.Layers() {
		names = append(names, l.Meta().Name)
	}
	if !reflect.DeepEqual(names, []string{"DAPI", "DAPI [1]", "Points"}) {
		t.Errorf("bad layer names %v\n", names)
	}
	l, found := v.Layer("DAPI [1]")
	if !found || l.Kind() != ImageKind {
		t.Errorf("could not find second image layer\n")
	}
	if img := l.(*ImageLayer); img.Blending != BlendTranslucent {
		t.Errorf("default blending should be translucent, got %q\n", img.Blending)
	}
	if len(v.ImageLayers()) != 2 {
		t.Errorf("expected 2 image layers\n")
	}
	if !v.RemoveLayer("Points") || v.RemoveLayer("Points") {
		t.Errorf("RemoveLayer should succeed once\n")
	}
}

func TestColormap(t *testing.T) {
	cm := Ramp("red", [3]float64{1, 0, 0})
	if got := cm.Map(0.5); got != [3]float64{0.5, 0, 0} {
		t.Errorf("Map(0.5) = %v\n", got)
	}
	if got := cm.Map(2); got != [3]float64{1, 0, 0} {
		t.Errorf("Map should clamp, got %v\n", got)
	}
	l := &ImageLayer{ContrastLimits: [2]float64{100, 200}}
	for _, tc := range []struct{ v, want float64 }{{50, 0}, {150, 0.5}, {300, 1}} {
		if got := l.Normalize(tc.v); got != tc.want {
			t.Errorf("Normalize(%g) = %g, want %g\n", tc.v, got, tc.want)
		}
	}
}

func TestLevelFor(t *testing.T) {
	level := func(h, w int) array.Array {
		return array.FromPlane(omv.NewPlane(omv.T_uint8, w, h))
	}
	l := &ImageLayer{Data: []array.Array{level(400, 400), level(200, 200), level(100, 100)}}
	tests := []struct{ h, w, want int }{
		{50, 50, 2}, {150, 100, 1}, {300, 300, 0}, {1000, 1000, 0},
	}
	for _, tc := range tests {
		if got := l.LevelFor(tc.h, tc.w); got != tc.want {
			t.Errorf("LevelFor(%d, %d) = %d, want %d\n", tc.h, tc.w, got, tc.want)
		}
	}
}

type named struct {
	Name   string
	hidden int
}

func (n *named) Upper() string { return strings.ToUpper(n.Name) }

func TestConsole(t *testing.T) {
	v := New()
	v.UpdateConsole(map[string]interface{}{"img": &named{Name: "cells"}, "n": 3})
	if got := v.ConsoleNames(); !reflect.DeepEqual(got, []string{"img", "n"}) {
		t.Errorf("console names %v\n", got)
	}
	tests := map[string]string{
		"n":         "3",
		"img.Name":  "cells",
		"img.Upper": "CELLS",
	}
	for expr, want := range tests {
		got, err := v.Eval(expr)
		if err != nil || got != want {
			t.Errorf("Eval(%q) = %q, %v; want %q\n", expr, got, err, want)
		}
	}
	for _, bad := range []string{"missing", "img.hidden", "img.Nope", "n.Field"} {
		if _, err := v.Eval(bad); err == nil {
			t.Errorf("Eval(%q) should fail\n", bad)
		}
	}
}

func TestActions(t *testing.T) {
	v := New()
	calls := 0
	v.AddAction("Save", func(ctx context.Context) error { calls++; return nil })
	v.AddAction("Fail", func(ctx context.Context) error { return errors.New("boom") })
	v.AddAction("Save", func(ctx context.Context) error { calls += 10; return nil })
	if got := len(v.Actions()); got != 2 {
		t.Errorf("expected 2 actions, got %d\n", got)
	}
	if err := v.RunAction(context.Background(), "Save"); err != nil || calls != 10 {
		t.Errorf("replaced action not run: calls %d, err %v\n", calls, err)
	}
	if err := v.RunAction(context.Background(), "Fail"); err == nil {
		t.Errorf("expected action error\n")
	}
	if err := v.RunAction(context.Background(), "Nope"); !errors.Is(err, ErrNoAction) {
		t.Errorf("expected ErrNoAction, got %v\n", err)
	}
}

const sampleAnnotations = `{
  "layers": [
    {"type": "points", "name": "Points", "data": [[1, 10.5, 20.5], [2, 3, 4]]},
    {"type": "shapes", "name": "Shapes",
     "data": [[[0, 0], [0, 5], [5, 5], [5, 0]], [[1, 1], [2, 2]]],
     "shape_type": ["rectangle", "line"]},
    {"type": "labels", "name": "Labels", "data": [[0, 1, 1], [0, 2, 0]]}
  ]
}`

func TestReadAnnotations(t *testing.T) {
	layers, err := ReadAnnotations(strings.NewReader(sampleAnnotations))
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d\n", len(layers))
	}
	points := layers[0].(*PointsLayer)
	if !reflect.DeepEqual(points.Data[0], []float64{1, 10.5, 20.5}) {
		t.Errorf("bad point %v\n", points.Data[0])
	}
	shapes := layers[1].(*ShapesLayer)
	if shapes.Shapes[0].Type != Rectangle || shapes.Shapes[1].Type != Line {
		t.Errorf("bad shape types %v\n", shapes.Shapes)
	}
	labels := layers[2].(*LabelsLayer)
	p, err := labels.Data.Plane(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p.Value(1, 1) != 2 || p.Width != 3 || p.Height != 2 {
		t.Errorf("bad labels plane %s\n", p)
	}

	bad := []string{
		`{}`,
		`{"layers": [{"type": "image", "name": "x", "data": []}]}`,
		`{"layers": [{"type": "shapes", "name": "x", "data": [[[0, 0]]], "shape_type": ["circle"]}]}`,
		`{"layers": [{"type": "shapes", "name": "x", "data": [[[0, 0]]], "shape_type": ["line", "path"]}]}`,
		`{"layers": [{"type": "points", "name": "x", "data": [[1]]}]}`,
		`{"layers": [{"type": "labels", "name": "x", "data": [[-1]]}]}`,
		`{"layers": [`,
	}
	for _, doc := range bad {
		if _, err := ReadAnnotations(strings.NewReader(doc)); err == nil {
			t.Errorf("expected error for %s\n", doc)
		}
	}
}

func TestReadAnnotationsSkipsEmptyShapes(t *testing.T) {
	docs := []string{
		`{"layers": [{"type": "shapes", "data": [[[0, 0], [1, 1]]], "shape_type": []}, {"type": "points", "data": [[1, 2]]}]}`,
		`{"layers": [{"type": "shapes", "data": [[[0, 0], [1, 1]]]}, {"type": "points", "data": [[1, 2]]}]}`,
		`{"layers": [{"type": "shapes", "data": [], "shape_type": ["line"]}, {"type": "points", "data": [[1, 2]]}]}`,
	}
	for _, doc := range docs {
		layers, err := ReadAnnotations(strings.NewReader(doc))
		if err != nil {
			t.Errorf("%s: %v\n", doc, err)
			continue
		}
		if len(layers) != 1 || layers[0].Kind() != PointsKind {
			t.Errorf("%s: expected only the points layer, got %v\n", doc, layers)
			continue
		}
		points := layers[0].(*PointsLayer)
		if points.Name != "Points" || !reflect.DeepEqual(points.Data, [][]float64{{1, 2}}) {
			t.Errorf("%s: bad points layer %+v\n", doc, points)
		}
	}
}

func TestAnnotationRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := New()
	v.AddImage(testImage(t, []int{3}, "DAPI"))
	filename := filepath.Join(t.TempDir(), "annotations.json")
	if err := writeFile(filename, sampleAnnotations); err != nil {
		t.Fatal(err)
	}
	if _, err := v.LoadAnnotations(filename); err != nil {
		t.Fatal(err)
	}
	if len(v.Layers()) != 4 {
		t.Fatalf("expected image plus 3 annotation layers, got %d\n", len(v.Layers()))
	}

	var buf bytes.Buffer
	if err := WriteAnnotations(ctx, &buf, v.Layers()); err != nil {
		t.Fatal(err)
	}
	again, err := ReadAnnotations(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 3 {
		t.Fatalf("image layers should not be written, got %d layers\n", len(again))
	}
	if !reflect.DeepEqual(again[1].(*ShapesLayer).Shapes, v.Layers()[2].(*ShapesLayer).Shapes) {
		t.Errorf("shapes changed on round trip\n")
	}

	out := filepath.Join(t.TempDir(), "out.json")
	if err := v.SaveAnnotations(ctx, out); err != nil {
		t.Fatal(err)
	}
}

func writeFile(filename, content string) error {
	return os.WriteFile(filename, []byte(content), 0644)
}
