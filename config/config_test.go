package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/omeview/omv"
)

const sampleTOML = `
[server]
host = "https://omero.example.org"
pixelservice = "https://pixels.example.org"
username = "demo"
group = 3

[zarr]
endpoint = "https://s3.example.org/"
cache = "512MiB"

[viewer]
concurrency = 8

[logging]
logfile = "logs/omeview.log"
max_log_size = 10
max_log_age = 7
`

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	fname := filepath.Join(dir, "omeview.toml")
	if err := os.WriteFile(fname, []byte(content), 0644); err != nil {
		t.Fatalf("couldn't write TOML file: %v\n", err)
	}
	return fname
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("bad default config: %v\n", err)
	}
	if c.Server.Host != DefaultHost {
		t.Errorf("expected default host %q, got %q\n", DefaultHost, c.Server.Host)
	}
	if c.Server.Group != AllGroups {
		t.Errorf("expected group override %d, got %d\n", AllGroups, c.Server.Group)
	}
	if c.Zarr.Endpoint != DefaultEndpoint {
		t.Errorf("expected default endpoint, got %q\n", c.Zarr.Endpoint)
	}
	n, err := c.ChunkCacheBytes()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2*omv.Giga {
		t.Errorf("expected 2 GiB chunk cache, got %d\n", n)
	}
	if c.PixelServiceURL() != DefaultHost {
		t.Errorf("pixel service should default to host, got %q\n", c.PixelServiceURL())
	}
	if c.Concurrency() != DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d\n", c.Concurrency())
	}
}

func TestLoadTOML(t *testing.T) {
	fname := writeConfig(t, sampleTOML)
	c, err := Load(fname)
	if err != nil {
		t.Fatalf("bad TOML configuration: %v\n", err)
	}
	if c.Server.Host != "https://omero.example.org" || c.Server.Username != "demo" || c.Server.Group != 3 {
		t.Errorf("bad server section: %+v\n", c.Server)
	}
	if c.PixelServiceURL() != "https://pixels.example.org" {
		t.Errorf("bad pixel service: %q\n", c.PixelServiceURL())
	}
	// unspecified values keep their defaults
	if c.Zarr.Bucket != DefaultBucket || c.Zarr.Root != DefaultRoot {
		t.Errorf("expected default bucket/root, got %q/%q\n", c.Zarr.Bucket, c.Zarr.Root)
	}
	n, err := c.ChunkCacheBytes()
	if err != nil || n != 512*omv.Mega {
		t.Errorf("expected 512 MiB cache, got %d (%v)\n", n, err)
	}
	if c.Concurrency() != 8 {
		t.Errorf("expected concurrency 8, got %d\n", c.Concurrency())
	}
	want := filepath.Join(filepath.Dir(fname), "logs", "omeview.log")
	if c.Logging.Logfile != want {
		t.Errorf("expected logfile %q, got %q\n", want, c.Logging.Logfile)
	}
	if c.Logging.MaxSize != 10 || c.Logging.MaxAge != 7 {
		t.Errorf("bad logging section: %+v\n", c.Logging)
	}
	if c.Location() != fname {
		t.Errorf("bad location %q\n", c.Location())
	}
}

func TestBadCacheSize(t *testing.T) {
	fname := writeConfig(t, "[zarr]\ncache = \"plenty\"\n")
	if _, err := Load(fname); err == nil {
		t.Fatalf("expected error on bad cache size\n")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error on missing config file\n")
	}
}
