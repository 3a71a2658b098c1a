package cache

import "errors"

// Sentinel errors for caching operations.
var (
	// ErrCacheMiss is returned by [Get] when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownBackend is returned by [Open] for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")
)
