package ports

import "errors"

var (
	// ErrCacheMiss is returned by CacheService.Get for absent keys.
	ErrCacheMiss = errors.New("cache miss")
	// ErrNotFound is returned by repositories when a table or row is absent.
	ErrNotFound = errors.New("not found")
)
