// Package api is the read-through path between callers and Trackmania.io:
// it keys each request, serves it from the cache when possible and
// deduplicates concurrent fills, both within the process and across
// processes sharing a Redis.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/52poke/tmio/internal/cache"
	"github.com/52poke/tmio/internal/lock"
	"github.com/52poke/tmio/internal/logging"
	"github.com/52poke/tmio/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	StatusHit     = "HIT"
	StatusMiss    = "MISS"
	StatusRefresh = "REFRESH"

	pollInterval = 50 * time.Millisecond
)

var ErrInvalidArgument = errors.New("invalid argument")

// Upstream fetches a path relative to the API root.
type Upstream interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Locker hands out cross-process fill locks. *lock.Locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, cacheKey string, ttl time.Duration) (*lock.RedisLock, bool, error)
}

type Options struct {
	Cache    *cache.Cache
	Keyer    cache.Keyer
	Upstream Upstream
	// Locker is optional; without it only in-process deduplication applies.
	Locker      Locker
	// LockTTL bounds the fill lock and each upstream fill.
	LockTTL     time.Duration
	MaxLockWait time.Duration
	Logger      *zerolog.Logger
}

type Request struct {
	Path  string
	Query url.Values
	// TTL for the stored response; zero uses the cache default.
	TTL time.Duration
}

type Result struct {
	// Body is owned by the caller.
	Body   []byte
	Status string
}

type Service struct {
	cache       *cache.Cache
	keyer       cache.Keyer
	upstream    Upstream
	locker      Locker
	lockTTL     time.Duration
	maxLockWait time.Duration
	log         zerolog.Logger
	sf          singleflight.Group
	now         func() time.Time
}

func NewService(opts Options) *Service {
	logger := logging.OrDefault(opts.Logger)
	keyer := opts.Keyer
	if keyer.Prefix == "" {
		keyer = cache.NewKeyer("")
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	maxWait := opts.MaxLockWait
	if maxWait < 0 {
		maxWait = 0
	}
	return &Service{
		cache:       opts.Cache,
		keyer:       keyer,
		upstream:    opts.Upstream,
		locker:      opts.Locker,
		lockTTL:     lockTTL,
		maxLockWait: maxWait,
		log:         logger.With().Str("component", "api").Logger(),
		now:         time.Now,
	}
}

// Key returns the cache key for req.
func (s *Service) Key(req Request) string {
	return s.keyer.Key("GET", req.Path, req.Query)
}

// Fetch returns the response for req from the cache, or fetches and stores
// it. Upstream errors are returned as is and never cached.
func (s *Service) Fetch(ctx context.Context, req Request) (Result, error) {
	key := s.Key(req)
	if body, ok := s.cache.Get(ctx, key); ok {
		return Result{Body: body, Status: StatusHit}, nil
	}

	// The fill outlives any single caller; each caller stops waiting on its
	// own context.
	ch := s.sf.DoChan(key, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lockTTL)
		defer cancel()
		return s.fill(fillCtx, key, req)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		if r.Shared {
			res.Body = bytes.Clone(res.Body)
		}
		return res, nil
	}
}

// Refresh fetches req upstream regardless of what is cached and stores the
// fresh response. When another process holds the fill lock it returns
// ok=false without fetching.
func (s *Service) Refresh(ctx context.Context, req Request) (Result, bool, error) {
	key := s.Key(req)
	if s.locker != nil && s.cache.Enabled() {
		l, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("fill lock unavailable, refreshing without it")
		} else if !ok {
			metrics.LockContention.Inc()
			return Result{}, false, nil
		} else {
			defer s.unlock(ctx, l, key)
		}
	}
	body, err := s.fetchAndStore(ctx, key, req)
	if err != nil {
		return Result{}, false, err
	}
	return Result{Body: body, Status: StatusRefresh}, true, nil
}

// Invalidate drops the cached response for req.
func (s *Service) Invalidate(ctx context.Context, req Request) {
	s.cache.Delete(ctx, s.Key(req))
}

func (s *Service) fill(ctx context.Context, key string, req Request) (Result, error) {
	if s.locker == nil || !s.cache.Enabled() {
		body, err := s.fetchAndStore(ctx, key, req)
		if err != nil {
			return Result{}, err
		}
		return Result{Body: body, Status: StatusMiss}, nil
	}

	deadline := time.Now().Add(s.maxLockWait)
	for {
		l, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("fill lock unavailable, fetching without it")
			break
		}
		if ok {
			defer s.unlock(ctx, l, key)
			if body, ok := s.cache.Get(ctx, key); ok {
				return Result{Body: body, Status: StatusHit}, nil
			}
			break
		}

		metrics.LockContention.Inc()
		if body, ok := s.cache.Get(ctx, key); ok {
			return Result{Body: body, Status: StatusHit}, nil
		}
		if !time.Now().Before(deadline) {
			s.log.Debug().Str("key", key).Msg("gave up waiting for fill lock")
			break
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	body, err := s.fetchAndStore(ctx, key, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Body: body, Status: StatusMiss}, nil
}

func (s *Service) fetchAndStore(ctx context.Context, key string, req Request) ([]byte, error) {
	p := cache.NormalizePath(req.Path)
	s.log.Debug().Str("path", p).Str("key", key).Msg("fetching upstream")
	// Fetch the path the key names, so a body is never stored under another
	// resource's key.
	body, err := s.upstream.Get(ctx, p, req.Query)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, body, req.TTL)
	return body, nil
}

func (s *Service) unlock(ctx context.Context, l *lock.RedisLock, key string) {
	if err := l.Unlock(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("could not release fill lock")
	}
}
