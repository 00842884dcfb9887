// Package config loads gadgethost settings from a TOML file.
//
// Every field has a default (see [Default]); a file only needs the values it
// changes. Command-line flags are applied by the CLI after [Load].
//
//	[server]
//	addr = ":8080"
//	resource_host = "gadgets.example.com"
//
//	[features]
//	roots = ["./features"]
//	compress = true
//
//	[cache]
//	backend = "redis"
//	[cache.redis]
//	addr = "localhost:6379"
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/gadgethost/pkg/cache"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
)

// Cache backends.
const (
	BackendNull   = "null"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig   `toml:"server"`
	Features  FeaturesConfig `toml:"features"`
	Cache     CacheConfig    `toml:"cache"`
	Fetch     FetchConfig    `toml:"fetch"`
	Blacklist []string       `toml:"blacklist"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// ResourceHost serves /gadgets/resources/ and is the target of res://
	// script URLs. Defaults to the host part of Addr on localhost.
	ResourceHost string        `toml:"resource_host"`
	ResourceDir  string        `toml:"resource_dir"`
	Secure       bool          `toml:"secure"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// FeaturesConfig lists the feature roots.
type FeaturesConfig struct {
	// Roots are directories holding a features.txt manifest, or manifest
	// files themselves.
	Roots    []string `toml:"roots"`
	Compress bool     `toml:"compress"`
}

// CacheConfig selects where assembled content and registry snapshots live.
type CacheConfig struct {
	Backend string            `toml:"backend"`
	Dir     string            `toml:"dir"`
	Prefix  string            `toml:"prefix"`
	Redis   cache.RedisConfig `toml:"redis"`
	Mongo   cache.MongoConfig `toml:"mongo"`
}

// FetchConfig tunes outbound HTTP.
type FetchConfig struct {
	Timeout      time.Duration `toml:"timeout"`
	Attempts     int           `toml:"attempts"`
	RetryDelay   time.Duration `toml:"retry_delay"`
	CacheSize    int           `toml:"cache_size"`
	MaxBodyBytes int64         `toml:"max_body_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ResourceHost: "localhost:8080",
			ResourceDir:  "resources",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Features: FeaturesConfig{
			Roots: []string{"features"},
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
			Redis:   cache.DefaultRedisConfig(),
			Mongo:   cache.DefaultMongoConfig(),
		},
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			Attempts:     3,
			RetryDelay:   500 * time.Millisecond,
			CacheSize:    512,
			MaxBodyBytes: 4 << 20,
		},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected so that typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, gerrors.New(gerrors.ErrCodeInvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "server.addr is required")
	}
	if c.Server.ResourceHost == "" {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "server.resource_host is required")
	}
	if len(c.Features.Roots) == 0 {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "features.roots must name at least one root")
	}
	switch c.Cache.Backend {
	case BackendNull, BackendMemory:
	case BackendFile:
		if c.Cache.Dir == "" {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "cache.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "cache.redis.addr is required for the redis backend")
		}
	case BackendMongo:
		if c.Cache.Mongo.URI == "" || c.Cache.Mongo.Database == "" || c.Cache.Mongo.Collection == "" {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "cache.mongo needs uri, database and collection")
		}
	default:
		return gerrors.New(gerrors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Fetch.Attempts < 0 || c.Fetch.Timeout < 0 || c.Fetch.RetryDelay < 0 {
		return gerrors.New(gerrors.ErrCodeInvalidInput, "fetch settings must not be negative")
	}
	return nil
}

// OpenCache connects the configured cache backend. The caller closes it.
func (c *Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	var (
		backend cache.Cache
		err     error
	)
	switch c.Cache.Backend {
	case BackendNull:
		backend = cache.NewNullCache()
	case BackendMemory, "":
		backend = cache.NewMemoryCache()
	case BackendFile:
		backend, err = cache.NewFileCache(c.Cache.Dir)
	case BackendRedis:
		backend, err = cache.NewRedisCache(ctx, c.Cache.Redis)
	case BackendMongo:
		backend, err = cache.NewMongoCache(ctx, c.Cache.Mongo)
	default:
		err = fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", c.Cache.Backend, err)
	}
	return backend, nil
}

// Keyer returns the cache keyer, scoped by Cache.Prefix when set.
func (c *Config) Keyer() cache.Keyer {
	if c.Cache.Prefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, c.Cache.Prefix)
}

// FetchOptions converts the fetch settings for httpfetch.New.
func (c *Config) FetchOptions() httpfetch.Options {
	return httpfetch.Options{
		Timeout:      c.Fetch.Timeout,
		Attempts:     c.Fetch.Attempts,
		RetryDelay:   c.Fetch.RetryDelay,
		CacheSize:    c.Fetch.CacheSize,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		Keyer:        c.Keyer(),
	}
}
