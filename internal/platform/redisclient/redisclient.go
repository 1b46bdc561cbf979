// Package redisclient opens the redis connection behind report caching.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/statline/statline-backend/internal/config"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// New constructs the client without touching the network. The check
// command wires it into the check environment and leaves the probing to
// the cache check.
func New(cfg *config.Config) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})
}

// Open connects and pings. Callers should only reach here when
// cfg.CacheEnabled() is true; everything else treats a nil client as
// cache-off.
func Open(cfg *config.Config, logg *logger.Logger) (redis.UniversalClient, error) {
	rdb := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logg.With("component", "redis").Info("redis connected", "addr", cfg.Redis.Addr)
	return rdb, nil
}
