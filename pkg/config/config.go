// Package config loads the service configuration from an optional YAML file,
// then applies environment overrides. Upstream credentials only ever come
// from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/upstream"
	"gopkg.in/yaml.v3"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"

	SnapshotFile      = "file"
	SnapshotGCS       = "gcs"
	SnapshotFirestore = "firestore"
	SnapshotNone      = "none"
)

// UpstreamConfig selects the account and how it is queried.
type UpstreamConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Account         string        `yaml:"account"`
	FallbackAccount string        `yaml:"fallback_account"`
	MaxResults      int           `yaml:"max_results"`
	Timeout         time.Duration `yaml:"timeout"`
}

// CacheConfig selects the cache backend and TTL policy.
type CacheConfig struct {
	Backend     string        `yaml:"backend"`
	Key         string        `yaml:"key"`
	TTL         time.Duration `yaml:"ttl"`
	FallbackTTL time.Duration `yaml:"fallback_ttl"`
}

// RedisConfig is used when the cache backend is redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SnapshotConfig selects where the last successful fetch is kept. A negative
// MaxStaleAge keeps writing the snapshot but never serves it.
type SnapshotConfig struct {
	Backend         string        `yaml:"backend"`
	Path            string        `yaml:"path"`
	Bucket          string        `yaml:"bucket"`
	Object          string        `yaml:"object"`
	Collection      string        `yaml:"collection"`
	Document        string        `yaml:"document"`
	ProjectID       string        `yaml:"project_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	MaxStaleAge     time.Duration `yaml:"max_stale_age"`
}

// Config is the full service configuration.
type Config struct {
	LogLevel    string         `yaml:"log_level"`
	HTTPPort    string         `yaml:"http_port"`
	DebugRoutes bool           `yaml:"debug_routes"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Cache       CacheConfig    `yaml:"cache"`
	Redis       RedisConfig    `yaml:"redis"`
	Snapshot    SnapshotConfig `yaml:"snapshot"`

	Credentials upstream.Credentials `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTPPort: ":8080",
		Upstream: UpstreamConfig{
			BaseURL:    "https://api.twitter.com",
			Account:    "BeatHammer",
			MaxResults: 10,
			Timeout:    10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:     CacheMemory,
			Key:         "posts:recent",
			TTL:         10 * time.Minute,
			FallbackTTL: 2 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "postcache:",
		},
		Snapshot: SnapshotConfig{
			Backend:     SnapshotFile,
			Path:        "tweets-cache.json",
			Object:      "posts-snapshot.json",
			Collection:  "postcache",
			Document:    "posts-snapshot",
			MaxStaleAge: 24 * time.Hour,
		},
	}
}

// Load reads path (if non-empty) over the defaults and applies the process
// environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.Credentials = upstream.Credentials{
		BearerToken:    getenv("TWITTER_BEARER_TOKEN"),
		ConsumerKey:    getenv("TWITTER_API_KEY"),
		ConsumerSecret: getenv("TWITTER_API_SECRET"),
		AccessToken:    getenv("TWITTER_ACCESS_TOKEN"),
		AccessSecret:   getenv("TWITTER_ACCESS_TOKEN_SECRET"),
	}

	setString(&c.HTTPPort, getenv("POSTCACHE_HTTP_PORT"))
	setString(&c.LogLevel, getenv("POSTCACHE_LOG_LEVEL"))
	setString(&c.Upstream.Account, getenv("POSTCACHE_ACCOUNT"))
	setString(&c.Cache.Backend, getenv("POSTCACHE_CACHE_BACKEND"))
	setString(&c.Redis.Addr, getenv("POSTCACHE_REDIS_ADDR"))
	setString(&c.Redis.Password, getenv("POSTCACHE_REDIS_PASSWORD"))
	setString(&c.Snapshot.Backend, getenv("POSTCACHE_SNAPSHOT_BACKEND"))
	setString(&c.Snapshot.Path, getenv("POSTCACHE_SNAPSHOT_PATH"))
	setString(&c.Snapshot.Bucket, getenv("POSTCACHE_SNAPSHOT_BUCKET"))
	setString(&c.Snapshot.ProjectID, getenv("POSTCACHE_SNAPSHOT_PROJECT_ID"))

	if v := getenv("POSTCACHE_DEBUG_ROUTES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid POSTCACHE_DEBUG_ROUTES %q: %w", v, err)
		}
		c.DebugRoutes = b
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("http_port is required"))
	}
	if c.Upstream.Account == "" {
		errs = append(errs, errors.New("upstream.account is required"))
	}
	if c.Cache.TTL <= 0 || c.Cache.FallbackTTL <= 0 {
		errs = append(errs, errors.New("cache.ttl and cache.fallback_ttl must be positive"))
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis cache"))
		}
		if c.Redis.KeyPrefix == "" {
			errs = append(errs, errors.New("redis.key_prefix is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}
	switch c.Snapshot.Backend {
	case SnapshotNone:
	case SnapshotFile:
		if c.Snapshot.Path == "" {
			errs = append(errs, errors.New("snapshot.path is required for the file snapshot"))
		}
	case SnapshotGCS:
		if c.Snapshot.Bucket == "" {
			errs = append(errs, errors.New("snapshot.bucket is required for the gcs snapshot"))
		}
	case SnapshotFirestore:
		if c.Snapshot.ProjectID == "" {
			errs = append(errs, errors.New("snapshot.project_id is required for the firestore snapshot"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown snapshot.backend %q", c.Snapshot.Backend))
	}
	return errors.Join(errs...)
}
