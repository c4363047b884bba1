// Package config loads omeview settings from a TOML file.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/janelia-flyem/omeview/omv"
)

const (
	// DefaultHost is the OMERO.web instance used when nothing else is given.
	DefaultHost = "https://idr.openmicroscopy.org"

	// DefaultEndpoint is the public S3-compatible endpoint serving IDR zarr images.
	DefaultEndpoint = "https://s3.embassy.ebi.ac.uk/"

	// DefaultBucket and DefaultRoot locate <image id>.zarr on the endpoint.
	DefaultBucket = "idr"
	DefaultRoot   = "zarr/v0.1"

	// DefaultChunkCache bounds the client-side zarr read cache.
	DefaultChunkCache = "2GiB"

	// DefaultConcurrency is the number of planes materialized in parallel.
	DefaultConcurrency = 4

	// AllGroups is the group override that permits cross-group lookups.
	AllGroups = -1
)

// Config is the parsed TOML configuration.
type Config struct {
	Server  ServerConfig
	Zarr    ZarrConfig
	Viewer  ViewerConfig
	Logging omv.LogConfig

	location string
}

type ServerConfig struct {
	Host         string
	PixelService string `toml:"pixelservice"`
	Username     string
	Password     string
	SessionKey   string `toml:"sessionkey"`
	ServerName   int    `toml:"servername"`
	Group        int
}

type ZarrConfig struct {
	Endpoint string
	Bucket   string
	Root     string
	Cache    string
}

type ViewerConfig struct {
	Concurrency int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       DefaultHost,
			ServerName: 1,
			Group:      AllGroups,
		},
		Zarr: ZarrConfig{
			Endpoint: DefaultEndpoint,
			Bucket:   DefaultBucket,
			Root:     DefaultRoot,
			Cache:    DefaultChunkCache,
		},
		Viewer: ViewerConfig{
			Concurrency: DefaultConcurrency,
		},
	}
}

// Load decodes a TOML file on top of the defaults.  An empty filename returns
// the defaults.
func Load(filename string) (*Config, error) {
	c := Default()
	if filename == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	omv.Debugf("config loaded from %s: %+v\n", filename, c.Zarr)
	return c, nil
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		abs, err := omv.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting logfile setting to absolute path")
		}
		c.Logging.Logfile = abs
	}
	return nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("[server] host must be set")
	}
	if _, err := c.ChunkCacheBytes(); err != nil {
		return fmt.Errorf("[zarr] cache: %v", err)
	}
	if c.Viewer.Concurrency < 0 {
		return fmt.Errorf("[viewer] concurrency must be >= 0, got %d", c.Viewer.Concurrency)
	}
	return nil
}

// Location returns the path of the loaded TOML file, if any.
func (c *Config) Location() string {
	return c.location
}

// PixelServiceURL returns the base URL for raw plane reads.
func (c *Config) PixelServiceURL() string {
	if c.Server.PixelService != "" {
		return c.Server.PixelService
	}
	return c.Server.Host
}

// ChunkCacheBytes returns the size of the zarr read cache in bytes.
func (c *Config) ChunkCacheBytes() (int, error) {
	if c.Zarr.Cache == "" {
		return omv.ParseByteSize(DefaultChunkCache)
	}
	return omv.ParseByteSize(c.Zarr.Cache)
}

// Concurrency returns the number of planes to materialize in parallel.
func (c *Config) Concurrency() int {
	if c.Viewer.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Viewer.Concurrency
}
