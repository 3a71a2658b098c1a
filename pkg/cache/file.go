package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCache stores one JSON file per key below a directory. It is the CLI
// default, so repeated comparisons across runs hit the registries only when
// an entry has gone stale.
//
// Keys shaped like "v1:registry:npm:react" are bucketed by everything before
// the last two fields, giving a tree such as
//
//	<dir>/v1/registry/3f/9a1c...e2.json
//
// so a layout version or a single resource can be dropped as a directory.
// Other keys land in the "misc" bucket.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file cache rooted at dir, creating it if needed.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache root.
func (c *FileCache) Dir() string { return c.dir }

type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Get returns the stored bytes. Unreadable, expired or mismatched entries are
// removed and reported as a miss.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil || (e.Key != "" && e.Key != key) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set writes the entry to a temporary file and renames it into place, so a
// concurrent reader sees either the old entry or the new one.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := fileEntry{Key: key, Data: data}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Delete removes key. A missing entry is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Purge removes every entry of resource (e.g. [ResourceRegistry]) across all
// layout versions and returns the number of entries removed.
func (c *FileCache) Purge(resource string) (int, error) {
	var buckets []string
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != c.dir && d.Name() == resource {
			buckets = append(buckets, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range buckets {
		_ = filepath.WalkDir(b, func(_ string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
				removed++
			}
			return nil
		})
		if err := os.RemoveAll(b); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Close does nothing.
func (c *FileCache) Close() error { return nil }

// path spreads entries over 256 subdirectories by the SHA-256 of the key.
func (c *FileCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, bucket(key), hash[:2], hash[2:]+".json")
}

// bucket maps "v1:registry:npm:react" to "v1/registry".
func bucket(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 3 {
		return "misc"
	}
	dirs := make([]string, 0, len(parts)-2)
	for _, p := range parts[:len(parts)-2] {
		p = sanitizeSegment(p)
		if p == "" {
			continue
		}
		dirs = append(dirs, p)
	}
	if len(dirs) == 0 {
		return "misc"
	}
	return filepath.Join(dirs...)
}

func sanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}

var _ Cache = (*FileCache)(nil)
