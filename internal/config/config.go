package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendRedis = "redis"
	BackendS3    = "s3"
	BackendNone  = "none"
)

type Config struct {
	ListenAddr         string `yaml:"listen_addr"`
	BaseURL            string `yaml:"base_url"`
	UserAgent          string `yaml:"user_agent"`
	UpstreamTimeoutSec int    `yaml:"upstream_timeout_seconds"`
	CacheBackend       string `yaml:"cache_backend"`
	KeyPrefix          string `yaml:"key_prefix"`
	DefaultTTLSeconds  int    `yaml:"default_ttl_seconds"`
	RedisHost          string `yaml:"redis_host"`
	RedisPort          int    `yaml:"redis_port"`
	RedisDB            int    `yaml:"redis_db"`
	RedisPassword      string `yaml:"redis_password"`
	RedisTimeoutMillis int    `yaml:"redis_timeout_millis"`
	S3Endpoint         string `yaml:"s3_endpoint"`
	S3Region           string `yaml:"s3_region"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3AccessKey        string `yaml:"s3_access_key"`
	S3SecretKey        string `yaml:"s3_secret_key"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
	MaxLockWaitSeconds int    `yaml:"max_lock_wait_seconds"`
	LogLevel           string `yaml:"log_level"`
	LogPretty          bool   `yaml:"log_pretty"`
}

func Defaults() Config {
	return Config{
		ListenAddr:         ":8080",
		BaseURL:            "https://trackmania.io/api",
		UpstreamTimeoutSec: 10,
		CacheBackend:       BackendRedis,
		KeyPrefix:          "tmio",
		DefaultTTLSeconds:  3600,
		RedisHost:          "127.0.0.1",
		RedisPort:          6379,
		RedisTimeoutMillis: 1000,
		LockTTLSeconds:     30,
		MaxLockWaitSeconds: 3,
		LogLevel:           "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// TMIO_* environment variables, in that order. An empty path falls back to
// TMIO_CONFIG.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("TMIO_CONFIG")
	}
	if path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.UserAgent) == "" {
		return errors.New("TMIO_USER_AGENT is required")
	}
	if c.BaseURL == "" {
		return errors.New("TMIO_BASE_URL must not be empty")
	}
	switch c.CacheBackend {
	case BackendRedis:
		if c.RedisHost == "" || c.RedisPort <= 0 {
			return errors.New("redis host/port are required")
		}
	case BackendS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return errors.New("S3 endpoint/bucket/access/secret are required")
		}
	case BackendNone:
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	return nil
}

func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

func (c Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

func (c Config) RedisTimeout() time.Duration {
	return time.Duration(c.RedisTimeoutMillis) * time.Millisecond
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSec) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c Config) MaxLockWait() time.Duration {
	return time.Duration(c.MaxLockWaitSeconds) * time.Second
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getenv("TMIO_LISTEN_ADDR", cfg.ListenAddr)
	cfg.BaseURL = getenv("TMIO_BASE_URL", cfg.BaseURL)
	cfg.UserAgent = getenv("TMIO_USER_AGENT", cfg.UserAgent)
	cfg.UpstreamTimeoutSec = getenvInt("TMIO_UPSTREAM_TIMEOUT_SECONDS", cfg.UpstreamTimeoutSec)
	cfg.CacheBackend = strings.ToLower(getenv("TMIO_CACHE_BACKEND", cfg.CacheBackend))
	cfg.KeyPrefix = getenv("TMIO_KEY_PREFIX", cfg.KeyPrefix)
	cfg.DefaultTTLSeconds = getenvInt("TMIO_DEFAULT_TTL_SECONDS", cfg.DefaultTTLSeconds)
	cfg.RedisHost = getenv("TMIO_REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getenvInt("TMIO_REDIS_PORT", cfg.RedisPort)
	cfg.RedisDB = getenvInt("TMIO_REDIS_DB", cfg.RedisDB)
	cfg.RedisPassword = getenv("TMIO_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisTimeoutMillis = getenvInt("TMIO_REDIS_TIMEOUT_MILLIS", cfg.RedisTimeoutMillis)
	cfg.S3Endpoint = getenv("TMIO_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getenv("TMIO_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getenv("TMIO_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getenv("TMIO_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getenv("TMIO_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.LockTTLSeconds = getenvInt("TMIO_LOCK_TTL_SECONDS", cfg.LockTTLSeconds)
	cfg.MaxLockWaitSeconds = getenvInt("TMIO_MAX_LOCK_WAIT_SECONDS", cfg.MaxLockWaitSeconds)
	cfg.LogLevel = getenv("TMIO_LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("TMIO_LOG_PRETTY"); v != "" {
		cfg.LogPretty = v == "1" || strings.EqualFold(v, "true")
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
