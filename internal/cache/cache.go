// Package cache provides an optional Redis fast-path in front of thread
// summary freshness checks. A nil *SummaryCache disables the fast path
// entirely and callers fall back to a plain store read.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaultlabs/vlt/internal/config"
	"github.com/vaultlabs/vlt/internal/obslog"
)

const defaultTTL = 10 * time.Minute

// SummaryCache caches a thread's last-summarized-node id so repeated
// freshness checks against the same thread skip a round trip to SQLite.
type SummaryCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New builds a Redis-backed summary cache when cfg.Addr is set. Returns nil
// when disabled, never an error for the disabled case.
func New(cfg config.CacheConfig, ttl time.Duration) (*SummaryCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("summary cache ping: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SummaryCache{client: client, ttl: ttl}, nil
}

func key(threadID string) string {
	return "vlt:thread_summary_anchor:" + threadID
}

// GetAnchor returns the cached last-summarized-node id for threadID, and
// whether it was present.
func (c *SummaryCache) GetAnchor(ctx context.Context, threadID string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key(threadID)).Result()
	if err != nil {
		if err != redis.Nil {
			obslog.Get().Debug().Err(err).Str("thread_id", threadID).Msg("summary_cache_get_error")
		}
		return "", false
	}
	return val, true
}

// SetAnchor caches threadID's last-summarized-node id.
func (c *SummaryCache) SetAnchor(ctx context.Context, threadID, nodeID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key(threadID), nodeID, c.ttl).Err(); err != nil {
		obslog.Get().Debug().Err(err).Str("thread_id", threadID).Msg("summary_cache_set_error")
	}
}

// Invalidate drops a cached anchor, forcing the next freshness check to hit
// the store — used after a thread's summary cache row is invalidated.
func (c *SummaryCache) Invalidate(ctx context.Context, threadID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key(threadID)).Err(); err != nil {
		obslog.Get().Debug().Err(err).Str("thread_id", threadID).Msg("summary_cache_invalidate_error")
	}
}
