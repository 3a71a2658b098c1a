package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const credentialsFile = "credentials.json"

// FileStore keeps credentials in a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a file store at path. An empty path means
// credentials.json inside [ConfigDir].
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		path = filepath.Join(dir, credentialsFile)
	}
	return &FileStore{path: path}, nil
}

// Path returns the credentials file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(context.Context) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if c.Token == "" {
		return nil, nil
	}
	return &c, nil
}

func (s *FileStore) Set(_ context.Context, c *Credentials) error {
	if c == nil || c.Token == "" {
		return ErrEmptyToken
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
