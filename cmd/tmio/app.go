package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/52poke/tmio/internal/api"
	"github.com/52poke/tmio/internal/cache"
	"github.com/52poke/tmio/internal/config"
	"github.com/52poke/tmio/internal/http"
	"github.com/52poke/tmio/internal/lock"
	"github.com/52poke/tmio/internal/logging"
	"github.com/52poke/tmio/internal/purge"
	"github.com/52poke/tmio/internal/tmio"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "tmio",
		Usage: "cached Trackmania.io API client and proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("TMIO_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the caching proxy",
				Action: serveAction,
			},
			{
				Name:      "get",
				Usage:     "fetch one API path through the cache",
				UsageText: "tmio get <path> [key=value...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "indent the JSON output"},
				},
				Action: getAction,
			},
			{
				Name:      "purge",
				Usage:     "drop one cached API path",
				UsageText: "tmio purge <path> [key=value...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "refresh", Usage: "refetch instead of only deleting"},
				},
				Action: purgeAction,
			},
		},
	}
}

// deps is everything built from the config that the commands share.
type deps struct {
	cfg    config.Config
	log    zerolog.Logger
	client *tmio.Client
	svc    *api.Service
	redis  *redis.Client
}

func (rt *deps) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}

func setup(ctx context.Context, cmd *cli.Command) (*deps, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	store, rc, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := tmio.NewClient(tmio.Options{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.UpstreamTimeout(),
	})
	if err != nil {
		return nil, err
	}

	opts := api.Options{
		Cache: cache.New(cache.Config{
			Store:      store,
			Logger:     &logger,
			DefaultTTL: cfg.DefaultTTL(),
		}),
		Keyer:       cache.NewKeyer(cfg.KeyPrefix),
		Upstream:    client,
		LockTTL:     cfg.LockTTL(),
		MaxLockWait: cfg.MaxLockWait(),
		Logger:      &logger,
	}
	if rc != nil {
		opts.Locker = lock.NewLocker(rc)
	}

	return &deps{
		cfg:    cfg,
		log:    logger,
		client: client,
		svc:    api.NewService(opts),
		redis:  rc,
	}, nil
}

// buildStore returns the configured store, plus the Redis client when the
// backend is Redis so it can also back the fill lock.
func buildStore(ctx context.Context, cfg config.Config) (cache.Store, *redis.Client, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rc := cache.NewRedisClient(cache.RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.RedisTimeout(),
		})
		return cache.NewRedisStore(rc), rc, nil
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		)
		if err != nil {
			return nil, nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
		})
		return cache.NewS3Store(cfg.S3Bucket, client), nil, nil
	case config.BackendNone:
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	handler, err := httpx.NewHandler(rt.svc, rt.client.BaseURL(), rt.client.UserAgent(), &rt.log)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         rt.cfg.ListenAddr,
		Handler:      newMux(handler, purge.NewHandler(rt.svc, &rt.log), rt.redis),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info().Str("addr", rt.cfg.ListenAddr).Str("backend", rt.cfg.CacheBackend).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	rt.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newMux(handler, purgeHandler http.Handler, rc *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if rc != nil {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == purge.Method {
			purgeHandler.ServeHTTP(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	return mux
}

func getAction(ctx context.Context, cmd *cli.Command) error {
	req, err := requestFromArgs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.svc.Fetch(ctx, req)
	if err != nil {
		return err
	}
	rt.log.Debug().Str("key", rt.svc.Key(req)).Str("cache", res.Status).Msg("fetched")

	out := res.Body
	if cmd.Bool("pretty") {
		out = []byte(gjson.GetBytes(out, "@pretty").Raw)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, strings.TrimRight(string(out), "\n"))
	return err
}

func purgeAction(ctx context.Context, cmd *cli.Command) error {
	req, err := requestFromArgs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !cmd.Bool("refresh") {
		rt.svc.Invalidate(ctx, req)
		rt.log.Info().Str("key", rt.svc.Key(req)).Msg("purged")
		return nil
	}
	_, ok, err := rt.svc.Refresh(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		rt.log.Warn().Str("key", rt.svc.Key(req)).Msg("refresh skipped, fill in progress elsewhere")
		return nil
	}
	rt.log.Info().Str("key", rt.svc.Key(req)).Msg("refreshed")
	return nil
}

// requestFromArgs turns `<path> [key=value...]` into a request. The path may
// carry the /api prefix and its own query string.
func requestFromArgs(args []string) (api.Request, error) {
	if len(args) == 0 {
		return api.Request{}, errors.New("path required")
	}
	u, err := url.Parse(args[0])
	if err != nil {
		return api.Request{}, fmt.Errorf("parsing path %q: %w", args[0], err)
	}
	p := u.Path
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		p = strings.TrimPrefix(p, "/api")
	}
	if strings.Trim(p, "/") == "" {
		return api.Request{}, errors.New("path required")
	}
	query := u.Query()
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return api.Request{}, fmt.Errorf("argument %q is not key=value", kv)
		}
		query.Add(k, v)
	}
	p = cache.NormalizePath(p)
	return api.Request{Path: p, Query: cache.StripTracking(query), TTL: api.TTLFor(p)}, nil
}
