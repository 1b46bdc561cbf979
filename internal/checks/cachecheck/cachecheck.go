// Package cachecheck registers checks over the report cache wiring.
package cachecheck

import (
	"context"
	"fmt"
	"time"

	"github.com/statline/statline-backend/internal/checks"
)

// pingTimeout bounds the redis round trip so a dead cache cannot stall the
// whole check run.
const pingTimeout = 2 * time.Second

func init() {
	checks.MustRegister("caches.report_cache", CheckReportCache, checks.TagCaches)
}

// CheckReportCache reports a disabled cache at info level and a configured
// but unreachable one as a warning. Both are survivable; reports fall back
// to recomputing.
func CheckReportCache(ctx context.Context, env *checks.Env) []checks.Message {
	if !env.Cfg.CacheEnabled() {
		return []checks.Message{
			checks.Info("caches.I001", "Report cache is disabled (REDIS_ADDR is empty).").
				WithHint("Every report request recomputes its aggregates. Set REDIS_ADDR to cache results."),
		}
	}
	if env.Redis == nil {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := env.Redis.Ping(pctx).Err(); err != nil {
		return []checks.Message{
			checks.Warning("caches.W002",
				fmt.Sprintf("Redis at %s is unreachable: %v.", env.Cfg.Redis.Addr, err)).
				WithHint("Reports still compute but nothing is cached. Verify REDIS_ADDR and the redis service."),
		}
	}
	return nil
}
