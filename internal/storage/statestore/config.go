package statestore

import (
	"errors"
	"fmt"
)

// Config holds configuration options for a state store backend.
type Config struct {
	// Backend specifies the storage backend to use.
	Backend string `json:"backend" mapstructure:"backend"`

	// Path specifies the file system path for data storage.
	Path string `json:"path" mapstructure:"path"`

	// Compressor names the value compressor ("lz4" or "none").
	Compressor string `json:"compressor" mapstructure:"compressor"`

	// CompressionMin is the minimum value size in bytes before compression
	// is attempted. Values below it are stored raw.
	CompressionMin int `json:"compression_min" mapstructure:"compression_min"`

	// CreateIfMissing creates the on-disk store on first open.
	CreateIfMissing bool `json:"create_if_missing" mapstructure:"create_if_missing"`
}

// DefaultConfig returns a configuration with sensible defaults, adjusted by
// any options given.
func DefaultConfig(opts ...Option) *Config {
	c := &Config{
		Backend:         "pebble",
		Path:            "./data/state",
		Compressor:      "lz4",
		CompressionMin:  64,
		CreateIfMissing: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend must be specified")
	}
	if c.Path == "" && c.Backend != "memory" {
		return errors.New("path must be specified")
	}
	if c.CompressionMin < 0 {
		return errors.New("compression_min must be non-negative")
	}
	if !IsCompressorAvailable(c.Compressor) {
		return fmt.Errorf("unsupported compressor: %s", c.Compressor)
	}
	return nil
}

// Option is a functional option for configuring the state store.
type Option func(*Config)

// WithBackend sets the storage backend.
func WithBackend(backend string) Option {
	return func(c *Config) { c.Backend = backend }
}

// WithPath sets the storage path.
func WithPath(path string) Option {
	return func(c *Config) { c.Path = path }
}

// WithCompressor sets the value compressor.
func WithCompressor(name string) Option {
	return func(c *Config) { c.Compressor = name }
}
