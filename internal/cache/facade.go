package cache

import (
	"context"
	"errors"
	"time"

	"github.com/52poke/tmio/internal/logging"
	"github.com/52poke/tmio/internal/metrics"
	"github.com/rs/zerolog"
)

// NoExpiry passed as a ttl stores the entry until it is deleted.
const NoExpiry time.Duration = -1

type Config struct {
	// Store backing the cache. A nil store disables caching: every Get
	// misses and every Set is dropped.
	Store Store
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// DefaultTTL applies when Set is called with a zero ttl. Zero keeps
	// such entries until they are deleted.
	DefaultTTL time.Duration
}

// Cache is the facade the request path talks to. Store failures are logged
// and reported as misses; they are never returned to the caller.
type Cache struct {
	store      Store
	log        zerolog.Logger
	defaultTTL time.Duration
}

func New(cfg Config) *Cache {
	logger := logging.OrDefault(cfg.Logger)
	return &Cache{
		store:      cfg.Store,
		log:        logger.With().Str("component", "cache").Logger(),
		defaultTTL: cfg.DefaultTTL,
	}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		metrics.CacheLookups.WithLabelValues(metrics.ResultMiss).Inc()
		return nil, false
	}
	val, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.fail("get", key, err)
		}
		metrics.CacheLookups.WithLabelValues(metrics.ResultMiss).Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(metrics.ResultHit).Inc()
	c.log.Debug().Str("key", key).Msg("cache hit")
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	switch {
	case ttl == NoExpiry:
		ttl = 0
	case ttl <= 0:
		ttl = c.defaultTTL
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.fail("set", key, err)
		return
	}
	c.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("cache set")
}

func (c *Cache) Exists(ctx context.Context, key string) bool {
	if !c.Enabled() {
		return false
	}
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		c.fail("exists", key, err)
		return false
	}
	return ok
}

func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.fail("delete", key, err)
	}
}

func (c *Cache) fail(op, key string, err error) {
	metrics.CacheErrors.WithLabelValues(op).Inc()
	c.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("cache store unavailable, treating as miss")
}
