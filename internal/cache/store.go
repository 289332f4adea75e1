package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache object not found")

// Store is the key-value backend behind the facade. A ttl of zero stores
// the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
