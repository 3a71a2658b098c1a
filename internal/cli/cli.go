// Package cli implements the stackrank command-line interface.
//
// The main commands are:
//   - compare: Compare npm and PyPI packages side by side
//   - pair: Legacy two-package comparison with percentage differences
//   - suggest: Autocomplete package names, optionally with an interactive picker
//   - auth: Store a GitHub token for repository enrichment
//   - cache, config: Inspect and manage local state
//   - serve: Run the HTTP API
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackrank/internal/config"
	"github.com/matzehuels/stackrank/pkg/cache"
	"github.com/matzehuels/stackrank/pkg/catalog"
	"github.com/matzehuels/stackrank/pkg/ecosystem"
	npmadapter "github.com/matzehuels/stackrank/pkg/ecosystem/npm"
	pypiadapter "github.com/matzehuels/stackrank/pkg/ecosystem/pypi"
	"github.com/matzehuels/stackrank/pkg/integrations/github"
	"github.com/matzehuels/stackrank/pkg/integrations/npm"
	"github.com/matzehuels/stackrank/pkg/integrations/pypi"
	"github.com/matzehuels/stackrank/pkg/orchestrator"
	"github.com/matzehuels/stackrank/pkg/settings"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "stackrank"

	// cacheLayout versions the key space; bump it when cached records change shape.
	cacheLayout = "v1:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Set from persistent flags.
	configPath  string
	githubToken string
	noCache     bool

	cfg   *config.Config
	store settings.Store
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Configuration & Credentials
// =============================================================================

// loadConfig loads the configuration once per process.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// settingsStore returns the credential store, ~/.config/stackrank/credentials.json
// unless overridden.
func (c *CLI) settingsStore() (settings.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	s, err := settings.NewFileStore("")
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	c.store = s
	return s, nil
}

// Token sources reported by `auth status`.
const (
	tokenFromFlag   = "--github-token flag"
	tokenFromEnv    = "environment"
	tokenFromStore  = "credential store"
	tokenFromConfig = "config file"
)

// resolveToken picks the GitHub token: flag, then GITHUB_TOKEN/GH_TOKEN, then
// the credential store, then the config file. An empty token is valid.
func resolveToken(ctx context.Context, flag string, getenv func(string) string, store settings.Store, cfg *config.Config) (token, source string) {
	if t := strings.TrimSpace(flag); t != "" {
		return t, tokenFromFlag
	}
	if t := config.EnvToken(getenv); t != "" {
		return t, tokenFromEnv
	}
	if store != nil {
		if t := settings.Token(ctx, store); t != "" {
			return t, tokenFromStore
		}
	}
	if cfg != nil && cfg.GitHub.Token != "" {
		return cfg.GitHub.Token, tokenFromConfig
	}
	return "", ""
}

func (c *CLI) token(ctx context.Context) (string, string) {
	cfg, _ := c.loadConfig()
	store, err := c.settingsStore()
	if err != nil {
		c.Logger.Debug("credential store unavailable", "error", err)
		store = nil
	}
	return resolveToken(ctx, c.githubToken, os.Getenv, store, cfg)
}

// =============================================================================
// Service Factories
// =============================================================================

// openCache opens the configured backend, scoped to the current key layout.
func (c *CLI) openCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	dir, err := cacheDir()
	if err != nil {
		dir = ""
	}
	backend, err := cache.Open(ctx, cfg.CacheOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return cache.NewScoped(backend, cacheLayout), nil
}

func (c *CLI) newGitHubClient(ctx context.Context) (*github.Client, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	token, source := c.token(ctx)
	opts := []github.Option{github.WithToken(token)}
	if cfg.GitHub.APIURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.APIURL))
	}
	client, err := github.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	if token == "" {
		c.Logger.Debug("github requests are anonymous")
	} else {
		c.Logger.Debug("github token loaded", "source", source)
	}
	return client, nil
}

// services bundles the long-lived objects a command needs.
type services struct {
	orch    *orchestrator.Orchestrator
	catalog *catalog.Catalog
	backend cache.Cache
}

func (s *services) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// newServices wires clients, adapters, the cache and the orchestrator from
// the configuration.
func (c *CLI) newServices(ctx context.Context) (*services, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	backend, err := c.openCache(ctx)
	if err != nil {
		return nil, err
	}
	query := cache.NewQuery(backend,
		cache.WithLogger(c.Logger),
		cache.WithRetries(cfg.Retries()))

	gh, err := c.newGitHubClient(ctx)
	if err != nil {
		backend.Close()
		return nil, err
	}
	host := ecosystem.NewGitHubSource(gh, c.Logger)

	var npmOpts []npm.Option
	if cfg.NPM.BaseURL != "" {
		npmOpts = append(npmOpts, npm.WithBaseURL(cfg.NPM.BaseURL))
	}
	npmClient := npm.NewClient(npmOpts...)

	var pypiOpts, indexOpts []pypi.Option
	if cfg.PyPI.BaseURL != "" {
		pypiOpts = append(pypiOpts, pypi.WithBaseURL(cfg.PyPI.BaseURL))
	}
	if cfg.PyPI.IndexURL != "" {
		indexOpts = append(indexOpts, pypi.WithBaseURL(cfg.PyPI.IndexURL))
	}
	if cfg.PyPI.PopularURL != "" {
		indexOpts = append(indexOpts, pypi.WithPopularURL(cfg.PyPI.PopularURL))
	}

	// The orchestrator fetches with WithoutSourceHost and runs the
	// source-host layer itself.
	adapters := ecosystem.NewRegistry(
		npmadapter.New(npmClient, host, c.Logger),
		pypiadapter.New(pypi.NewClient(pypiOpts...), host, c.Logger),
	)
	orch := orchestrator.New(adapters,
		orchestrator.WithSourceHost(host),
		orchestrator.WithQuery(query),
		orchestrator.WithPolicies(cfg.RegistryPolicy(), cfg.SourceHostPolicy()),
		orchestrator.WithLogger(c.Logger))

	cat := catalog.New(npmClient, pypi.NewIndexClient(indexOpts...),
		catalog.WithQuery(query),
		catalog.WithPolicy(cfg.PackageListPolicy()),
		catalog.WithLogger(c.Logger))

	return &services{orch: orch, catalog: cat, backend: backend}, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/stackrank/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configuredCacheDir returns the file cache directory after applying the
// config file's [cache] dir.
func (c *CLI) configuredCacheDir() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.CacheOptions(dir).Dir, nil
}
