// Package config loads the stackrank configuration file and applies
// environment overrides.
//
// The file is TOML and every key is optional:
//
//	[cache]
//	backend = "file"        # file, memory, redis, mongo, none
//	dir = "~/.cache/stackrank"
//	registry_stale = "72h"
//	registry_gc = "168h"
//	retries = 1
//
//	[github]
//	token = "ghp_..."
//
//	[server]
//	addr = ":8080"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackrank/pkg/cache"
	"github.com/matzehuels/stackrank/pkg/settings"
)

// FileName is the name of the config file inside the config directory.
const FileName = "config.toml"

// Environment variables that override file values.
const (
	EnvCacheBackend   = "STACKRANK_CACHE_BACKEND"
	EnvRedisURL       = "STACKRANK_REDIS_URL"
	EnvMongoURI       = "STACKRANK_MONGO_URI"
	EnvServerAddr     = "STACKRANK_SERVER_ADDR"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGHToken        = "GH_TOKEN"
	EnvGitHubClientID = "GITHUB_CLIENT_ID"
)

// Duration is a time.Duration that reads from TOML strings such as "72h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete configuration.
type Config struct {
	Cache  Cache  `toml:"cache" json:"cache"`
	Redis  Redis  `toml:"redis" json:"redis"`
	Mongo  Mongo  `toml:"mongo" json:"mongo"`
	GitHub GitHub `toml:"github" json:"github"`
	NPM    NPM    `toml:"npm" json:"npm"`
	PyPI   PyPI   `toml:"pypi" json:"pypi"`
	Server Server `toml:"server" json:"server"`
}

// Cache selects the cache backend and freshness horizons.
type Cache struct {
	Backend string `toml:"backend" json:"backend"`
	Dir     string `toml:"dir" json:"dir,omitempty"`

	RegistryStale    Duration `toml:"registry_stale" json:"registryStale"`
	RegistryGC       Duration `toml:"registry_gc" json:"registryGc"`
	SourceHostStale  Duration `toml:"source_host_stale" json:"sourceHostStale"`
	SourceHostGC     Duration `toml:"source_host_gc" json:"sourceHostGc"`
	PackageListStale Duration `toml:"package_list_stale" json:"packageListStale"`
	PackageListGC    Duration `toml:"package_list_gc" json:"packageListGc"`

	Retries *int `toml:"retries" json:"retries"`
}

// Redis configures the redis backend.
type Redis struct {
	URL string `toml:"url" json:"url,omitempty"`
}

// Mongo configures the mongo backend.
type Mongo struct {
	URI        string `toml:"uri" json:"uri,omitempty"`
	Database   string `toml:"database" json:"database,omitempty"`
	Collection string `toml:"collection" json:"collection,omitempty"`
}

// GitHub configures the source host.
type GitHub struct {
	Token    string `toml:"token" json:"-"`
	APIURL   string `toml:"api_url" json:"apiUrl,omitempty"`
	ClientID string `toml:"client_id" json:"clientId,omitempty"`
}

// NPM configures the npm score service.
type NPM struct {
	BaseURL string `toml:"base_url" json:"baseUrl,omitempty"`
}

// PyPI configures the PyPI JSON API and bulk package lists.
type PyPI struct {
	BaseURL    string `toml:"base_url" json:"baseUrl,omitempty"`
	IndexURL   string `toml:"index_url" json:"indexUrl,omitempty"`
	PopularURL string `toml:"popular_url" json:"popularUrl,omitempty"`
}

// Server configures `stackrank serve`.
type Server struct {
	Addr string `toml:"addr" json:"addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	retries := 1
	return &Config{
		Cache: Cache{
			Backend:          cache.BackendFile,
			RegistryStale:    Duration{cache.RegistryPolicy.StaleTime},
			RegistryGC:       Duration{cache.RegistryPolicy.GCTime},
			SourceHostStale:  Duration{cache.SourceHostPolicy.StaleTime},
			SourceHostGC:     Duration{cache.SourceHostPolicy.GCTime},
			PackageListStale: Duration{cache.PackageListPolicy.StaleTime},
			PackageListGC:    Duration{cache.PackageListPolicy.GCTime},
			Retries:          &retries,
		},
		Server: Server{Addr: ":8080"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/stackrank/config.toml, falling back
// to ~/.config/stackrank/config.toml.
func DefaultPath() (string, error) {
	dir, err := settings.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads path on top of [Default] and applies environment overrides.
// A missing file is not an error. An empty path selects [DefaultPath].
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg. Keys that are not part of [Config] are
// rejected so that typos surface.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides file values with the environment read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvCacheBackend); v != "" {
		c.Cache.Backend = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := getenv(EnvMongoURI); v != "" {
		c.Mongo.URI = v
	}
	if v := getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvGitHubClientID); v != "" {
		c.GitHub.ClientID = v
	}
	if v := EnvToken(getenv); v != "" {
		c.GitHub.Token = v
	}
}

// EnvToken returns GITHUB_TOKEN, or GH_TOKEN when the former is unset.
func EnvToken(getenv func(string) string) string {
	if v := strings.TrimSpace(getenv(EnvGitHubToken)); v != "" {
		return v
	}
	return strings.TrimSpace(getenv(EnvGHToken))
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", cache.BackendFile, cache.BackendMemory, cache.BackendNone:
	case cache.BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("cache backend redis needs [redis] url or %s", EnvRedisURL)
		}
	case cache.BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("cache backend mongo needs [mongo] uri or %s", EnvMongoURI)
		}
	default:
		return fmt.Errorf("unknown cache backend %q (available: file, memory, redis, mongo, none)", c.Cache.Backend)
	}
	if r := c.Cache.Retries; r != nil && *r < 0 {
		return fmt.Errorf("cache retries must not be negative")
	}
	for _, p := range []struct {
		name      string
		stale, gc Duration
	}{
		{"registry", c.Cache.RegistryStale, c.Cache.RegistryGC},
		{"source_host", c.Cache.SourceHostStale, c.Cache.SourceHostGC},
		{"package_list", c.Cache.PackageListStale, c.Cache.PackageListGC},
	} {
		if p.gc.Duration > 0 && p.gc.Duration < p.stale.Duration {
			return fmt.Errorf("cache %s_gc (%s) is shorter than %s_stale (%s)", p.name, p.gc, p.name, p.stale)
		}
	}
	return nil
}

// RegistryPolicy returns the cache policy for registry records.
func (c *Config) RegistryPolicy() cache.Policy {
	return cache.Policy{StaleTime: c.Cache.RegistryStale.Duration, GCTime: c.Cache.RegistryGC.Duration}
}

// SourceHostPolicy returns the cache policy for source-host records.
func (c *Config) SourceHostPolicy() cache.Policy {
	return cache.Policy{StaleTime: c.Cache.SourceHostStale.Duration, GCTime: c.Cache.SourceHostGC.Duration}
}

// PackageListPolicy returns the cache policy for bulk package lists.
func (c *Config) PackageListPolicy() cache.Policy {
	return cache.Policy{StaleTime: c.Cache.PackageListStale.Duration, GCTime: c.Cache.PackageListGC.Duration}
}

// Retries returns the number of retries for retryable fetch failures.
func (c *Config) Retries() int {
	if c.Cache.Retries == nil {
		return 1
	}
	return *c.Cache.Retries
}

// CacheOptions returns the backend options for [cache.Open]. defaultDir is
// used when no directory is configured.
func (c *Config) CacheOptions(defaultDir string) cache.Options {
	dir := expandHome(c.Cache.Dir)
	if dir == "" {
		dir = defaultDir
	}
	return cache.Options{
		Backend:         c.Cache.Backend,
		Dir:             dir,
		RedisURL:        c.Redis.URL,
		MongoURI:        c.Mongo.URI,
		MongoDatabase:   c.Mongo.Database,
		MongoCollection: c.Mongo.Collection,
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
