package session

import (
	"context"
	"reflect"
	"testing"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omero"
	"github.com/janelia-flyem/omeview/omero/omerotest"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/planes"
	"github.com/janelia-flyem/omeview/storage"
	"github.com/janelia-flyem/omeview/viewer"

	"gocloud.dev/blob/memblob"
)

var cells = omerotest.Image{
	ID:         1,
	Name:       "cells.tif",
	SizeX:      4,
	SizeY:      3,
	SizeZ:      3,
	SizeT:      2,
	PixelsType: "uint16",
	Channels: []omerotest.Channel{
		{Label: "DAPI", Color: "0000FF", Active: true, Min: 0, Max: 4095, Start: 10, End: 900},
		{Label: "GFP", Color: "00FF00", Active: false, Min: 0, Max: 4095, Start: 0, End: 2000},
	},
	DefaultZ: 1,
	DefaultT: 1,
}

// stub is an array of a given shape whose planes are zero.
type stub struct {
	shape []int
}

func (s stub) Shape() []int        { return s.shape }
func (s stub) DType() omv.DataType { return omv.T_uint8 }

func (s stub) Plane(ctx context.Context, idx ...int) (*omv.Plane, error) {
	n := len(s.shape)
	return omv.NewPlane(omv.T_uint8, s.shape[n-1], s.shape[n-2]), nil
}

func connect(t *testing.T, images ...omerotest.Image) (*omerotest.Server, *omero.Client) {
	srv := omerotest.NewServer(images...)
	t.Cleanup(srv.Close)
	client, err := omero.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Login(context.Background(), omerotest.Username, omerotest.Password, 1); err != nil {
		t.Fatal(err)
	}
	client.SetGroup(-1)
	return srv, client
}

func lookup(t *testing.T, client *omero.Client, id int64) *omero.Image {
	img, err := client.GetImage(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestDimsLabelling(t *testing.T) {
	tests := []struct {
		sizeT, sizeZ int
		leading      []int
		labels       []string
		point        []int
	}{
		{1, 5, []int{5}, []string{"Z", "1", "2"}, []int{3, 0, 0}},
		{4, 1, []int{4}, []string{"T", "1", "2"}, []int{2, 0, 0}},
		{4, 5, []int{4, 5}, []string{"T", "Z", "2", "3"}, []int{2, 3, 0, 0}},
		{1, 1, nil, []string{"0", "1"}, []int{0, 0}},
	}
	for _, tc := range tests {
		img := &omero.Image{SizeX: 4, SizeY: 3, SizeZ: tc.sizeZ, SizeT: tc.sizeT, DefaultZ: 3, DefaultT: 2}
		v := viewer.New()
		shape := append(append([]int{}, tc.leading...), 3, 4)
		if _, err := v.AddImage(&viewer.ImageLayer{Data: []array.Array{stub{shape}}}); err != nil {
			t.Fatal(err)
		}
		if err := SetDimsLabels(v, img); err != nil {
			t.Fatal(err)
		}
		if err := SetDimsDefaults(v, img); err != nil {
			t.Fatal(err)
		}
		if got := v.Dims.AxisLabels(); !reflect.DeepEqual(got, tc.labels) {
			t.Errorf("T=%d Z=%d: labels %v, want %v\n", tc.sizeT, tc.sizeZ, got, tc.labels)
		}
		if got := v.Dims.Point(); !reflect.DeepEqual(got, tc.point) {
			t.Errorf("T=%d Z=%d: point %v, want %v\n", tc.sizeT, tc.sizeZ, got, tc.point)
		}
	}
}

func TestLoadImageEager(t *testing.T) {
	ctx := context.Background()
	srv, client := connect(t, cells)
	img := lookup(t, client, 1)
	v := viewer.New()
	s, err := Open(ctx, client, img, v, Options{Mode: planes.Eager})
	if err != nil {
		t.Fatal(err)
	}
	if got := srv.PlaneReads(); got != 12 {
		t.Errorf("eager load should read 12 planes, read %d\n", got)
	}
	if s.Cache().Len() != 12 {
		t.Errorf("expected 12 cached planes, got %d\n", s.Cache().Len())
	}
	layers := v.ImageLayers()
	if len(layers) != 2 {
		t.Fatalf("expected 2 channel layers, got %d\n", len(layers))
	}
	dapi := layers[0]
	if got := array.ShapeString(dapi.Shape()); got != "(2, 3, 3, 4)" {
		t.Errorf("bad layer shape %s\n", got)
	}
	if dapi.Name != "DAPI" || !dapi.Visible || dapi.Blending != viewer.BlendAdditive {
		t.Errorf("bad layer settings %+v\n", dapi.LayerMeta)
	}
	if dapi.ContrastLimits != [2]float64{10, 900} || dapi.ContrastLimitsRange != [2]float64{0, 4095} {
		t.Errorf("bad contrast %v / %v\n", dapi.ContrastLimits, dapi.ContrastLimitsRange)
	}
	if got := dapi.Colormap.Map(1); got != [3]float64{0, 0, 1} {
		t.Errorf("DAPI colormap should end in blue, got %v\n", got)
	}
	if layers[1].Visible {
		t.Errorf("inactive channel should be hidden\n")
	}
	if got := v.Dims.AxisLabels(); !reflect.DeepEqual(got[:2], []string{"T", "Z"}) {
		t.Errorf("bad dims labels %v\n", got)
	}
	if got := v.Dims.Point(); got[0] != 1 || got[1] != 1 {
		t.Errorf("sliders should sit on the default plane, got %v\n", got)
	}

	p, err := array.PlaneAt(ctx, dapi.Data[0], v.Dims.Leading())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.Value(2, 1), omerotest.Value(2, 1, 1, 0, 1); got != want {
		t.Errorf("pixel at default plane = %g, want %g\n", got, want)
	}
}

func TestLoadImageLazy(t *testing.T) {
	ctx := context.Background()
	srv, client := connect(t, cells)
	img := lookup(t, client, 1)
	v := viewer.New()
	s, err := Open(ctx, client, img, v, Options{Mode: planes.Lazy, Concurrency: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := srv.PlaneReads(); got != 0 {
		t.Errorf("lazy load should not read planes, read %d\n", got)
	}
	gfp := v.ImageLayers()[1]
	if got := array.ShapeString(gfp.Shape()); got != "(2, 3, 3, 4)" {
		t.Errorf("bad lazy shape %s\n", got)
	}
	if _, err := array.Materialize(ctx, gfp.Data[0], s.Concurrency()); err != nil {
		t.Fatal(err)
	}
	if got := srv.PlaneReads(); got != 6 {
		t.Errorf("materializing one channel should read 6 planes, read %d\n", got)
	}
	if _, err := array.Materialize(ctx, gfp.Data[0], s.Concurrency()); err != nil {
		t.Fatal(err)
	}
	if got := srv.PlaneReads(); got != 6 {
		t.Errorf("second materialization should hit the cache, read %d\n", got)
	}
}

func TestContrastFromData(t *testing.T) {
	ctx := context.Background()
	img := omerotest.Image{
		ID: 2, Name: "raw.tif", SizeX: 4, SizeY: 3, SizeZ: 1, SizeT: 1, PixelsType: "uint8",
		Channels: []omerotest.Channel{{Label: "", Color: "FF0000", Active: true}},
	}
	srv, client := connect(t, img)
	v := viewer.New()
	if _, err := Open(ctx, client, lookup(t, client, 2), v, Options{}); err != nil {
		t.Fatal(err)
	}
	layer := v.ImageLayers()[0]
	if layer.Name != "Channel 0" {
		t.Errorf("unlabelled channel should be named by index, got %q\n", layer.Name)
	}
	if layer.ContrastLimits != [2]float64{0, 7} || layer.ContrastLimitsRange != [2]float64{0, 7} {
		t.Errorf("contrast from data = %v / %v\n", layer.ContrastLimits, layer.ContrastLimitsRange)
	}
	if got := srv.PlaneReads(); got != 1 {
		t.Errorf("contrast estimate should read exactly one plane, read %d\n", got)
	}
	if got := array.ShapeString(layer.Shape()); got != "(3, 4)" {
		t.Errorf("single plane image should be 2D, got %s\n", got)
	}
}

func TestSaveAction(t *testing.T) {
	ctx := context.Background()
	srv, client := connect(t, cells)
	img := lookup(t, client, 1)
	v := viewer.New()
	if _, err := Open(ctx, client, img, v, Options{}); err != nil {
		t.Fatal(err)
	}
	console := v.Console()
	if console[ConsoleConn] != client || console[ConsoleImage] != img {
		t.Errorf("console should expose the connection and image: %v\n", console)
	}
	if got, err := v.Eval("omero_image.Name"); err != nil || got != "cells.tif" {
		t.Errorf("Eval(omero_image.Name) = %q, %v\n", got, err)
	}

	v.AddPoints("Points", [][]float64{{1, 2, 1.5, 2.5}})
	if err := v.RunAction(ctx, SaveROIsAction); err != nil {
		t.Fatal(err)
	}
	saved := srv.SavedROIs()
	if len(saved) != 1 {
		t.Fatalf("expected 1 saved ROI, got %d\n", len(saved))
	}
	point := saved[0]["shapes"].([]interface{})[0].(map[string]interface{})
	if point["TheT"] != 1.0 || point["TheZ"] != 2.0 || point["X"] != 2.5 || point["Y"] != 1.5 {
		t.Errorf("bad saved point %v\n", point)
	}
}

func TestLoadImageZarr(t *testing.T) {
	ctx := context.Background()
	img := omerotest.Image{
		ID: 9, Name: "pyramid", SizeX: 4, SizeY: 3, SizeZ: 2, SizeT: 1, PixelsType: "uint8",
		Channels: []omerotest.Channel{{Label: "c0", Color: "FFFFFF", Active: true, Max: 255, End: 255}},
	}
	srv, client := connect(t, img)

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	meta := `{"zarr_format": 2, "shape": [1, 1, 2, 3, 4], "chunks": [1, 1, 1, 3, 4], "dtype": "|u1",
		"compressor": null, "fill_value": 0, "order": "C", "filters": null}`
	if err := bucket.WriteAll(ctx, "9.zarr/0/.zarray", []byte(meta), nil); err != nil {
		t.Fatal(err)
	}
	for z := 0; z < 2; z++ {
		chunk := make([]byte, 12)
		for i := range chunk {
			chunk[i] = byte(10*z + i)
		}
		key := "9.zarr/0/0.0." + string(rune('0'+z)) + ".0.0"
		if err := bucket.WriteAll(ctx, key, chunk, nil); err != nil {
			t.Fatal(err)
		}
	}

	v := viewer.New()
	opts := Options{Zarr: true, Store: storage.NewBucketStore(bucket)}
	if _, err := Open(ctx, client, lookup(t, client, 9), v, opts); err != nil {
		t.Fatal(err)
	}
	layer := v.ImageLayers()[0]
	if got := array.ShapeString(layer.Shape()); got != "(2, 3, 4)" {
		t.Errorf("bad zarr layer shape %s\n", got)
	}
	p, err := layer.Data[0].Plane(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Value(3, 2); got != 21 {
		t.Errorf("zarr pixel = %g, want 21\n", got)
	}
	if got := srv.PlaneReads(); got != 0 {
		t.Errorf("zarr path should not read raw planes, read %d\n", got)
	}

	if _, err := Open(ctx, client, lookup(t, client, 9), viewer.New(), Options{Zarr: true}); err == nil {
		t.Errorf("expected error without a zarr store\n")
	}
}

func TestLazyLoadReadsOnlyForMissingWindow(t *testing.T) {
	ctx := context.Background()
	img := cells
	img.ID = 3
	img.Channels = []omerotest.Channel{
		cells.Channels[0],
		{Label: "raw", Color: "FF0000", Active: true},
	}
	srv, client := connect(t, img)
	v := viewer.New()
	if _, err := Open(ctx, client, lookup(t, client, 3), v, Options{Mode: planes.Lazy}); err != nil {
		t.Fatal(err)
	}
	if got := srv.PlaneReads(); got != 1 {
		t.Fatalf("lazy load should read one plane for the window-less channel, read %d\n", got)
	}
	if got := srv.PlaneReadsOf(omv.PlaneCoord{Z: 0, C: 1, T: 0}); got != 1 {
		t.Errorf("contrast should come from the first plane of channel 1, read it %d times\n", got)
	}
	raw := v.ImageLayers()[1]
	if raw.ContrastLimitsRange != [2]float64{50, 57} {
		t.Errorf("contrast range from data = %v\n", raw.ContrastLimitsRange)
	}
}
