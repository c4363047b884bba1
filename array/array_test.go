package array

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/janelia-flyem/omeview/omv"
)

// countingPlanes returns lazy 2D arrays whose plane value encodes its index.
func countingPlanes(n int, reads *int64) []Array {
	parts := make([]Array, n)
	for i := 0; i < n; i++ {
		i := i
		parts[i] = FromPlaneFunc(omv.T_uint8, 2, 3, func(ctx context.Context) (*omv.Plane, error) {
			atomic.AddInt64(reads, 1)
			p := omv.NewPlane(omv.T_uint8, 3, 2)
			for j := range p.Data {
				p.Data[j] = byte(i)
			}
			return p, nil
		})
	}
	return parts
}

func TestStackShape(t *testing.T) {
	var reads int64
	parts := countingPlanes(6, &reads)
	inner := make([]Array, 2)
	for i := range inner {
		s, err := Stack(parts[i*3 : (i+1)*3])
		if err != nil {
			t.Fatal(err)
		}
		inner[i] = s
	}
	a, err := Stack(inner)
	if err != nil {
		t.Fatal(err)
	}
	if got := ShapeString(a.Shape()); got != "(2, 3, 2, 3)" {
		t.Errorf("expected shape (2, 3, 2, 3), got %s\n", got)
	}
	if reads != 0 {
		t.Fatalf("stacking should not read any plane, got %d reads\n", reads)
	}
	p, err := a.Plane(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Value(0, 0) != 5 {
		t.Errorf("expected plane 5 at (1,2), got value %g\n", p.Value(0, 0))
	}
	if reads != 1 {
		t.Errorf("expected exactly one read, got %d\n", reads)
	}
	if _, err := a.Plane(context.Background(), 2, 0); err == nil {
		t.Errorf("expected out of range error\n")
	}
	if _, err := a.Plane(context.Background(), 0); err == nil {
		t.Errorf("expected error on wrong number of indices\n")
	}
}

func TestStackMismatch(t *testing.T) {
	a := FromPlane(omv.NewPlane(omv.T_uint8, 3, 2))
	b := FromPlane(omv.NewPlane(omv.T_uint16, 3, 2))
	if _, err := Stack([]Array{a, b}); err == nil {
		t.Errorf("expected error stacking different types\n")
	}
	c := FromPlane(omv.NewPlane(omv.T_uint8, 4, 2))
	if _, err := Stack([]Array{a, c}); err == nil {
		t.Errorf("expected error stacking different shapes\n")
	}
	if _, err := Stack(nil); err == nil {
		t.Errorf("expected error stacking nothing\n")
	}
}

func TestSliceAndSqueeze(t *testing.T) {
	var reads int64
	parts := countingPlanes(6, &reads)
	// shape (1, 2, 3, Y, X) built as 1 x (2 x 3)
	rows := make([]Array, 2)
	for i := range rows {
		rows[i], _ = Stack(parts[i*3 : (i+1)*3])
	}
	mid, _ := Stack(rows)
	a, err := Stack([]Array{mid})
	if err != nil {
		t.Fatal(err)
	}

	sliced, err := SliceAxis(a, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := ShapeString(sliced.Shape()); got != "(1, 3, 2, 3)" {
		t.Fatalf("bad sliced shape %s\n", got)
	}
	squeezed, err := Squeeze(sliced, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := ShapeString(squeezed.Shape()); got != "(3, 2, 3)" {
		t.Fatalf("bad squeezed shape %s\n", got)
	}
	p, err := squeezed.Plane(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Value(1, 1) != 5 {
		t.Errorf("expected plane 5, got %g\n", p.Value(1, 1))
	}

	if _, err := Squeeze(a, 1); err == nil {
		t.Errorf("expected error squeezing axis with extent 2\n")
	}
	if _, err := SliceAxis(a, 3, 0); err == nil {
		t.Errorf("expected error slicing a plane axis\n")
	}
	if _, err := SliceAxis(a, 1, 2); err == nil {
		t.Errorf("expected error slicing out of range\n")
	}
	same, err := Squeeze(a)
	if err != nil || same != a {
		t.Errorf("squeezing no axes should return the array itself\n")
	}
}

func TestMaterialize(t *testing.T) {
	var reads int64
	parts := countingPlanes(4, &reads)
	a, _ := Stack(parts)
	d, err := Materialize(context.Background(), a, 2)
	if err != nil {
		t.Fatal(err)
	}
	if reads != 4 {
		t.Errorf("expected 4 reads, got %d\n", reads)
	}
	if !SameShape(a, d) {
		t.Errorf("materialized shape %v differs from %v\n", d.Shape(), a.Shape())
	}
	for i, p := range d.Planes() {
		if p.Value(0, 0) != float64(i) {
			t.Errorf("plane %d has value %g\n", i, p.Value(0, 0))
		}
	}
	again, err := Materialize(context.Background(), d, 2)
	if err != nil || again != d {
		t.Errorf("materializing a dense array should return it unchanged\n")
	}
}

func TestMaterializeError(t *testing.T) {
	boom := errors.New("connection lost")
	var reads int64
	parts := countingPlanes(3, &reads)
	parts[1] = FromPlaneFunc(omv.T_uint8, 2, 3, func(ctx context.Context) (*omv.Plane, error) {
		return nil, boom
	})
	a, _ := Stack(parts)
	if _, err := Materialize(context.Background(), a, 1); !errors.Is(err, boom) {
		t.Fatalf("expected read error to propagate, got %v\n", err)
	}
}

func TestLazyChecksGeometry(t *testing.T) {
	l := FromPlaneFunc(omv.T_uint16, 2, 2, func(ctx context.Context) (*omv.Plane, error) {
		return omv.NewPlane(omv.T_uint8, 2, 2), nil
	})
	if _, err := l.Plane(context.Background()); err == nil {
		t.Errorf("expected error on mismatched deferred plane\n")
	}
}

func TestPlaneAt(t *testing.T) {
	var reads int64
	a, _ := Stack(countingPlanes(3, &reads))
	p, err := PlaneAt(context.Background(), a, []int{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if p.Value(0, 0) != 2 {
		t.Errorf("expected trailing index to select plane 2, got %g\n", p.Value(0, 0))
	}
	two := FromPlane(omv.NewPlane(omv.T_uint8, 3, 2))
	if _, err := PlaneAt(context.Background(), two, []int{4, 4}); err != nil {
		t.Errorf("2D array should ignore leading point: %v\n", err)
	}
}

func TestNewDenseValidation(t *testing.T) {
	planes := []*omv.Plane{omv.NewPlane(omv.T_uint8, 3, 2)}
	if _, err := NewDense(omv.T_uint8, []int{2}, 2, 3, planes); err == nil {
		t.Errorf("expected error on plane count mismatch\n")
	}
	if _, err := NewDense(omv.T_uint16, []int{1}, 2, 3, planes); err == nil {
		t.Errorf("expected error on type mismatch\n")
	}
	d, err := NewDense(omv.T_uint8, []int{1}, 2, 3, planes)
	if err != nil {
		t.Fatal(err)
	}
	if NumPlanes(d) != 1 || Rank(d) != 3 {
		t.Errorf("bad dense geometry %v\n", d.Shape())
	}
}

func TestStackGrid(t *testing.T) {
	var reads int64
	parts := countingPlanes(6, &reads)
	a, err := StackGrid(parts, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got := ShapeString(a.Shape()); got != "(2, 3, 2, 3)" {
		t.Fatalf("bad grid shape %s\n", got)
	}
	p, err := a.Plane(context.Background(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Value(0, 0) != 3 {
		t.Errorf("expected plane 3 at (1,0), got %g\n", p.Value(0, 0))
	}
	single, err := StackGrid(parts[:1], nil)
	if err != nil || single != parts[0] {
		t.Errorf("empty leading shape should return the part itself\n")
	}
	if _, err := StackGrid(parts, []int{4}); err == nil {
		t.Errorf("expected error on part count mismatch\n")
	}
}
