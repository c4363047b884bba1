package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob/memblob"
)

type countingStore struct {
	Store
	gets map[string]int
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets[key]++
	return s.Store.Get(ctx, key)
}

func TestChunkCache(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	if err := bucket.WriteAll(ctx, "1.zarr/0/0.0.0.0.0", []byte("chunk"), nil); err != nil {
		t.Fatal(err)
	}

	store := &countingStore{Store: NewBucketStore(bucket), gets: make(map[string]int)}
	cache := NewChunkCache(store, 4<<20)

	for i := 0; i < 3; i++ {
		value, err := cache.Get(ctx, "1.zarr/0/0.0.0.0.0")
		if err != nil {
			t.Fatal(err)
		}
		if string(value) != "chunk" {
			t.Fatalf("bad cached value %q\n", value)
		}
	}
	if n := store.gets["1.zarr/0/0.0.0.0.0"]; n != 1 {
		t.Errorf("expected one store read, got %d\n", n)
	}

	for i := 0; i < 2; i++ {
		if _, err := cache.Get(ctx, "1.zarr/0/9.9.9.9.9"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing chunk, got %v\n", err)
		}
	}
	if n := store.gets["1.zarr/0/9.9.9.9.9"]; n != 1 {
		t.Errorf("missing keys should be remembered, got %d store reads\n", n)
	}
	if stats := cache.Stats(); stats.Entries != 2 || stats.Size != 4<<20 {
		t.Errorf("bad cache stats %+v\n", stats)
	}
}

func TestOpenFileBucket(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "5.zarr"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "5.zarr", ".zattrs"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	bucket, err := OpenBucket(ctx, "file://"+dir)
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()
	data, err := NewBucketStore(bucket).Get(ctx, "5.zarr/.zattrs")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("bad file bucket value %q\n", data)
	}
}

func TestOpenBucketRefs(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatal(err)
	}
	b.Close()
	if _, err := OpenBucket(ctx, "ftp://somewhere"); err == nil {
		t.Errorf("expected error on unsupported reference\n")
	}
	if _, err := OpenBucket(ctx, "vast://endpoint-only"); err == nil {
		t.Errorf("expected error on vast reference without bucket\n")
	}
}

func TestPrefixedBucket(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	if err := bucket.WriteAll(ctx, "zarr/v0.1/2.zarr/.zattrs", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	pb := prefixed(bucket, "/zarr/v0.1/")
	data, err := NewBucketStore(pb).Get(ctx, "2.zarr/.zattrs")
	if err != nil || string(data) != "x" {
		t.Errorf("prefixed read got %q, %v\n", data, err)
	}
}

func TestOpenEndpointBadURL(t *testing.T) {
	if _, err := OpenEndpoint(context.Background(), "not a url", "idr", ""); err == nil {
		t.Errorf("expected error on bad endpoint\n")
	}
}
