// Package cache keeps recently computed report payloads in Redis. A
// ReportCache with no client is valid and never hits.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

type ReportCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisClient connects to Redis and pings it. It returns nil when addr is
// empty or the server does not answer, and callers run without a cache.
func NewRedisClient(ctx context.Context, cfg Config, logger *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if logger != nil {
			logger.Warn("redis unavailable, report cache disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		}
		_ = client.Close()
		return nil
	}
	return client
}

func New(rdb *redis.Client, cfg Config, logger *zap.Logger) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "gatehouse:report"
	}
	return &ReportCache{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

func (c *ReportCache) Enabled() bool { return c != nil && c.rdb != nil }

// Load decodes the cached value for key into dst and reports whether it did.
// Redis errors count as a miss.
func (c *ReportCache) Load(ctx context.Context, key string, dst any) bool {
	if !c.Enabled() {
		return false
	}
	b, err := c.rdb.Get(ctx, c.prefix+":"+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("report cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.logger.Debug("report cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Store saves v under key for the configured TTL. Failures are logged only.
func (c *ReportCache) Store(ctx context.Context, key string, v any) {
	if !c.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Debug("report cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+":"+key, b, c.ttl).Err(); err != nil {
		c.logger.Debug("report cache set failed", zap.String("key", key), zap.Error(err))
	}
}
