package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/storage"
	"golang.org/x/sync/errgroup"
)

// chunkConcurrency bounds the chunk reads issued for one plane.
const chunkConcurrency = 8

// Array is a zarr v2 array whose last two axes are (Y, X).  Planes are read
// on demand from the chunks that intersect them.
type Array struct {
	store     storage.Store
	path      string
	meta      Metadata
	dtype     omv.DataType
	bigEndian bool
	fill      float64
}

var _ array.Array = (*Array)(nil)

// Open reads and validates the .zarray metadata at p.
func Open(ctx context.Context, store storage.Store, p string) (*Array, error) {
	p = strings.Trim(p, "/")
	data, err := store.Get(ctx, path.Join(p, ".zarray"))
	if err != nil {
		return nil, fmt.Errorf("cannot open zarr array %q: %w", p, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("bad .zarray for %q: %v", p, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("zarr array %q: %v", p, err)
	}
	dtype, bigEndian, _ := ParseDType(meta.DType)
	fill, err := meta.Fill()
	if err != nil {
		return nil, fmt.Errorf("zarr array %q: %v", p, err)
	}
	omv.Debugf("Opened zarr array %q: shape %v, chunks %v, %s\n", p, meta.Shape, meta.Chunks, meta.DType)
	return &Array{
		store:     store,
		path:      p,
		meta:      meta,
		dtype:     dtype,
		bigEndian: bigEndian,
		fill:      fill,
	}, nil
}

func (a *Array) Shape() []int {
	return append([]int{}, a.meta.Shape...)
}

func (a *Array) DType() omv.DataType {
	return a.dtype
}

// Metadata returns the parsed .zarray.
func (a *Array) Metadata() Metadata {
	return a.meta
}

// chunkKey returns the store key of the chunk at the given chunk coordinates.
func (a *Array) chunkKey(coords []int) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	return path.Join(a.path, strings.Join(parts, a.meta.Separator()))
}

// Plane reads the (Y, X) plane at the given leading index.
func (a *Array) Plane(ctx context.Context, idx ...int) (*omv.Plane, error) {
	shape := a.meta.Shape
	chunks := a.meta.Chunks
	nd := len(shape)
	if len(idx) != nd-2 {
		return nil, fmt.Errorf("zarr array %q of shape %v needs %d plane indices, got %d", a.path, shape, nd-2, len(idx))
	}
	for i, v := range idx {
		if v < 0 || v >= shape[i] {
			return nil, fmt.Errorf("index %d out of range [0,%d) on axis %d of %q", v, shape[i], i, a.path)
		}
	}
	height, width := shape[nd-2], shape[nd-1]
	chunkY, chunkX := chunks[nd-2], chunks[nd-1]
	plane := omv.NewPlane(a.dtype, width, height)

	// Element offset of the plane within each chunk it touches.
	leadingOffset := 0
	leadingChunk := make([]int, nd-2)
	for i, v := range idx {
		leadingChunk[i] = v / chunks[i]
		leadingOffset = leadingOffset*chunks[i] + v%chunks[i]
	}
	planeOffset := leadingOffset * chunkY * chunkX

	itemSize := a.dtype.Bytes()
	chunkBytes := itemSize
	for _, c := range chunks {
		chunkBytes *= c
	}

	timedLog := omv.NewTimeLog()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkConcurrency)
	for cy := 0; cy*chunkY < height; cy++ {
		for cx := 0; cx*chunkX < width; cx++ {
			coords := append(append([]int{}, leadingChunk...), cy, cx)
			y0, x0 := cy*chunkY, cx*chunkX
			g.Go(func() error {
				data, err := a.readChunk(gctx, coords, chunkBytes)
				if err != nil {
					return err
				}
				for yy := 0; yy < chunkY && y0+yy < height; yy++ {
					for xx := 0; xx < chunkX && x0+xx < width; xx++ {
						dst := (y0+yy)*width + x0 + xx
						if data == nil {
							a.dtype.PutValueAt(plane.Data, dst, a.fill)
							continue
						}
						src := (planeOffset + yy*chunkX + xx) * itemSize
						copy(plane.Data[dst*itemSize:(dst+1)*itemSize], data[src:src+itemSize])
					}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	timedLog.Debugf("Read plane %v of zarr array %q", idx, a.path)
	return plane, nil
}

// readChunk returns the decoded chunk, or nil if the chunk is missing.
func (a *Array) readChunk(ctx context.Context, coords []int, expected int) ([]byte, error) {
	key := a.chunkKey(coords)
	raw, err := a.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := decompress(a.meta.Compressor, raw)
	if err != nil {
		return nil, fmt.Errorf("cannot decode chunk %q: %v", key, err)
	}
	if len(data) != expected {
		return nil, fmt.Errorf("chunk %q decoded to %d bytes, expected %d", key, len(data), expected)
	}
	if a.bigEndian {
		if a.meta.Compressor == nil {
			data = append([]byte(nil), data...)
		}
		omv.SwapEndian(a.dtype, data)
	}
	return data, nil
}
