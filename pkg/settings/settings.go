// Package settings persists user credentials for the source host.
//
// A stored GitHub token raises the API rate limit. Having no token is a
// valid state: every [Store] returns nil, nil when nothing is saved.
//
//	store, err := settings.NewFileStore("") // ~/.config/stackrank/credentials.json
//	creds, err := store.Get(ctx)
//	if creds != nil {
//	    client, _ := github.NewClient(github.WithToken(creds.Token))
//	}
package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/matzehuels/stackrank/pkg/integrations/github"
)

// ErrEmptyToken is returned when saving credentials without a token.
var ErrEmptyToken = errors.New("empty token")

// Credentials is a saved source-host token and the account it belongs to.
type Credentials struct {
	Token   string       `json:"token"`
	User    *github.User `json:"user,omitempty"`
	SavedAt time.Time    `json:"saved_at"`
}

// Login returns the account login, or "" when unknown.
func (c *Credentials) Login() string {
	if c == nil || c.User == nil {
		return ""
	}
	return c.User.Login
}

// Store persists one set of credentials.
type Store interface {
	// Get returns the saved credentials, or nil, nil when there are none.
	Get(ctx context.Context) (*Credentials, error)

	// Set replaces the saved credentials.
	Set(ctx context.Context, c *Credentials) error

	// Clear removes the saved credentials. Clearing nothing is not an error.
	Clear(ctx context.Context) error
}

// Token returns the saved token, or "" when there is none or the store
// cannot be read.
func Token(ctx context.Context, s Store) string {
	if s == nil {
		return ""
	}
	c, err := s.Get(ctx)
	if err != nil || c == nil {
		return ""
	}
	return c.Token
}

// ConfigDir returns $XDG_CONFIG_HOME/stackrank, or ~/.config/stackrank.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "stackrank"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "stackrank"), nil
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(context.Context) (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return nil, nil
	}
	c := *m.creds
	return &c, nil
}

func (m *MemoryStore) Set(_ context.Context, c *Credentials) error {
	if c == nil || c.Token == "" {
		return ErrEmptyToken
	}
	cp := *c
	m.mu.Lock()
	m.creds = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.creds = nil
	m.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
