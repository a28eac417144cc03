// Package cache provides a Redis-backed read-through cache for identity
// verification verdicts. Verification fans out to claim and issuer lookups
// on every transfer; caching the verdict keeps the hot path cheap.
//
// Entries are best-effort: a cache failure degrades to recomputing, never
// to a wrong answer, and every registry mutation invalidates the affected
// addresses.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"smartcore/pkg/domain"
)

const keyPrefix = "smartcore:verify:"

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartcore_verification_cache_hits_total",
		Help: "Verification verdicts served from cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartcore_verification_cache_misses_total",
		Help: "Verification verdicts recomputed from the registry",
	})
)

// VerificationCache caches IsVerified verdicts with a TTL.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs a cache over an existing Redis client.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *VerificationCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(addr domain.Address, topics []domain.Topic) string {
	parts := make([]string, len(topics))
	for i, t := range topics {
		parts[i] = strconv.FormatUint(uint64(t), 10)
	}
	sort.Strings(parts)
	return keyPrefix + addr.String() + ":" + strings.Join(parts, ",")
}

func (c *VerificationCache) Get(ctx context.Context, addr domain.Address, topics []domain.Topic) (bool, bool) {
	val, err := c.client.Get(ctx, cacheKey(addr, topics)).Result()
	if err != nil {
		cacheMisses.Inc()
		return false, false
	}
	cacheHits.Inc()
	return val == "1", true
}

func (c *VerificationCache) Set(ctx context.Context, addr domain.Address, topics []domain.Topic, verified bool) {
	val := "0"
	if verified {
		val = "1"
	}
	if err := c.client.Set(ctx, cacheKey(addr, topics), val, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "verification cache set failed", "error", err)
	}
}

// InvalidateAddress drops all cached verdicts for one address.
func (c *VerificationCache) InvalidateAddress(ctx context.Context, addr domain.Address) {
	c.deleteByPattern(ctx, keyPrefix+addr.String()+":*")
}

// InvalidateAll drops every cached verdict. Used when issuer trust changes,
// which can affect any identity.
func (c *VerificationCache) InvalidateAll(ctx context.Context) {
	c.deleteByPattern(ctx, keyPrefix+"*")
}

func (c *VerificationCache) deleteByPattern(ctx context.Context, pattern string) {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WarnContext(ctx, "verification cache delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "verification cache scan failed", "error", err)
	}
}
