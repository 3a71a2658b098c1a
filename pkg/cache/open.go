package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	Dir string // file

	RedisURL string // redis

	MongoURI        string // mongo
	MongoDatabase   string
	MongoCollection string
}

// Open creates the backend named by opts.Backend. An empty name selects the
// file cache.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendFile:
		if opts.Dir == "" {
			return nil, fmt.Errorf("file cache: no directory configured")
		}
		return NewFileCache(opts.Dir)
	case BackendMemory:
		return NewMemoryCache(10 * time.Minute), nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMongo:
		db, coll := opts.MongoDatabase, opts.MongoCollection
		if db == "" {
			db = "stackrank"
		}
		if coll == "" {
			coll = "cache"
		}
		c, err := NewMongoCache(ctx, opts.MongoURI, db, coll)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendNone:
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
