// Package sessioncache holds short lived values (session cookies, fetched pages) with
// a time to live, on top of one of several interchangeable backing stores.
package sessioncache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("sessioncache: entry not found")

// Store is a key/value store with per entry expiry. A ttl <= 0 means the entry never
// expires. Get returns ErrNotFound for absent and expired entries, any other error means
// the backing store itself failed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
