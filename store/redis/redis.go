/*
Package redis implements generic.Cache on top of go-redis.

PURPOSE:
  Shares cached holiday balances and daytype counts between server
  instances. Values never expire; the engine deletes them on writes.

KEYS:
  Every key is stored under a prefix (default "timetracker:") so the cache
  can share a database with other applications.

USAGE:
  cache, err := redis.New(ctx, redis.Config{Addr: "localhost:6379"}, log)
  engine := tracker.NewEngine(store, tracker.WithCache(cache))

SEE ALSO:
  - generic/cache.go: the contract
  - store/memory/cache.go: single-process implementation
*/
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/warp/timetracker/generic"
	"go.uber.org/zap"
)

const DefaultPrefix = "timetracker:"

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Cache stores values in Redis with no TTL.
type Cache struct {
	rdb    *goredis.Client
	prefix string
	log    *zap.Logger
}

var _ generic.Cache = (*Cache)(nil)

// New connects and pings the server.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info("redis cache connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return NewFromClient(rdb, cfg.Prefix, log), nil
}

// NewFromClient wraps an existing client. An empty prefix selects DefaultPrefix.
func NewFromClient(rdb *goredis.Client, prefix string, log *zap.Logger) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{rdb: rdb, prefix: prefix, log: log}
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", generic.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, c.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	n, err := c.rdb.Del(ctx, full...).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	c.log.Debug("cache keys deleted", zap.Int("requested", len(keys)), zap.Int64("deleted", n))
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
