// Package cache memoises search responses per snapshot version. An
// in-process go-cache layer sits in front of an optional shared Redis layer;
// values cross the Redis boundary msgpack-encoded.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/pkg/config"
	"github.com/seniorliving/directory-search/pkg/health"
	"github.com/seniorliving/directory-search/pkg/metrics"
	pkgredis "github.com/seniorliving/directory-search/pkg/redis"
)

const keyPrefix = "search:"

type QueryCache struct {
	local    *gocache.Cache
	remote   *pkgredis.Client
	localTTL time.Duration
	ttl      time.Duration
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

// New builds a cache. remote and m may be nil; without remote only the
// in-process layer is used.
func New(remote *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	localTTL := cfg.LocalTTL
	if localTTL <= 0 {
		localTTL = 30 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		local:    gocache.New(localTTL, 2*localTTL),
		remote:   remote,
		localTTL: localTTL,
		ttl:      ttl,
		metrics:  m,
		logger:   slog.Default().With("component", "query-cache"),
	}
}

// Key derives the cache key for q against a snapshot version, so a refreshed
// snapshot never serves stale pages.
func Key(version string, q query.Query) string {
	hash := sha256.Sum256([]byte(version + "|" + q.CacheKey()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (engine.Response, bool) {
	if v, ok := c.local.Get(key); ok {
		c.hit()
		return v.(engine.Response), true
	}
	if c.remote == nil {
		c.miss()
		return engine.Response{}, false
	}

	data, err := c.remote.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return engine.Response{}, false
	}
	var resp engine.Response
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return engine.Response{}, false
	}
	c.local.Set(key, resp, c.localTTL)
	c.hit()
	c.logger.Debug("cache hit", "key", key, "layer", "redis")
	return resp, true
}

func (c *QueryCache) Set(ctx context.Context, key string, resp engine.Response) {
	c.local.Set(key, resp, c.localTTL)
	if c.remote == nil {
		return
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.remote.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for q, computing and storing it
// on a miss. Concurrent misses for one key share a single computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version string,
	q query.Query,
	computeFn func() (engine.Response, error),
) (engine.Response, bool, error) {
	key := Key(version, q)
	if resp, ok := c.Get(ctx, key); ok {
		return resp, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.local.Get(key); ok {
			return v.(engine.Response), nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return engine.Response{}, false, err
	}
	return val.(engine.Response), false, nil
}

// Invalidate drops every cached response in both layers.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.local.Flush()
	if c.remote == nil {
		c.logger.Info("cache invalidate", "layer", "local")
		return nil
	}
	deleted, err := c.remote.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Entries is the number of responses held in-process.
func (c *QueryCache) Entries() int {
	return c.local.ItemCount()
}

// Check reports the Redis layer's reachability. A cache without Redis is
// healthy; an unreachable Redis degrades to the local layer.
func (c *QueryCache) Check(ctx context.Context) health.ComponentHealth {
	if c.remote == nil {
		return health.ComponentHealth{Status: health.StatusUp, Message: "local only"}
	}
	if err := c.remote.Ping(ctx); err != nil {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
	}
	return health.ComponentHealth{Status: health.StatusUp, Message: c.remote.PoolStats()}
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
