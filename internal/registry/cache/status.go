// Package cache provides the Redis-backed read cache for identity status
// checks. It is strictly an accelerator: misses and Redis failures fall
// through to the store, and every mutation touching an address invalidates
// its entry.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "selfid/internal/platform/redis"
	"selfid/internal/registry/models"
)

const keyPrefix = "selfid:status:"

// StatusCache caches StatusReport values per address with a short TTL.
type StatusCache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs the cache. Returns nil when client is nil so callers can
// wire it unconditionally.
func New(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *StatusCache {
	if client == nil {
		return nil
	}
	return &StatusCache{client: client, ttl: ttl, logger: logger}
}

func (c *StatusCache) Get(ctx context.Context, addr string) (models.StatusReport, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+addr).Bytes()
	if err != nil {
		return models.StatusReport{}, false
	}
	var report models.StatusReport
	if err := json.Unmarshal(raw, &report); err != nil {
		c.logger.WarnContext(ctx, "corrupt status cache entry", "address", addr, "error", err)
		return models.StatusReport{}, false
	}
	return report, true
}

func (c *StatusCache) Set(ctx context.Context, addr string, report models.StatusReport) {
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+addr, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to set status cache entry", "address", addr, "error", err)
	}
}

func (c *StatusCache) Invalidate(ctx context.Context, addrs ...string) {
	keys := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr != "" {
			keys = append(keys, keyPrefix+addr)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate status cache", "error", err)
	}
}
