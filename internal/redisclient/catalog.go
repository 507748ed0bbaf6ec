package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const catalogVersionKey = "catalog:version"

// CatalogCache caches storefront catalog responses. Entries are namespaced
// by a version counter; bumping the counter invalidates every entry at once.
type CatalogCache struct {
	client *Client
	ttl    time.Duration
}

// Catalog returns a catalog cache whose entries live for ttl.
func (c *Client) Catalog(ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: c, ttl: ttl}
}

func (cc *CatalogCache) version(ctx context.Context) (int64, error) {
	v, err := cc.client.rdb.Get(ctx, catalogVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func catalogKey(version int64, parts []string) string {
	return fmt.Sprintf("catalog:v%d:%s", version, strings.Join(parts, ":"))
}

// Get loads a cached entry into dest and reports a hit together with the
// version it read. The version is what Set must be given, so a response
// built while the catalog changes lands in the retired namespace. Redis
// errors are logged and reported as a miss with version -1.
func (cc *CatalogCache) Get(ctx context.Context, dest interface{}, parts ...string) (int64, bool) {
	v, err := cc.version(ctx)
	if err == nil {
		var hit bool
		hit, err = cc.client.getJSON(ctx, catalogKey(v, parts), dest)
		if err == nil {
			result := "miss"
			if hit {
				result = "hit"
			}
			util.CatalogCacheRequests.WithLabelValues(result).Inc()
			return v, hit
		}
	}

	util.CatalogCacheRequests.WithLabelValues("error").Inc()
	util.LoggerFromContext(ctx).Warn("Catalog cache read failed", zap.Error(err))
	return -1, false
}

// Set stores value under the given catalog version.
func (cc *CatalogCache) Set(ctx context.Context, version int64, value interface{}, parts ...string) {
	if version < 0 {
		return
	}
	if err := cc.client.setJSON(ctx, catalogKey(version, parts), value, cc.ttl); err != nil {
		util.LoggerFromContext(ctx).Warn("Catalog cache write failed", zap.Error(err))
	}
}

// Invalidate drops every cached catalog entry by moving to a new version.
func (cc *CatalogCache) Invalidate(ctx context.Context) error {
	return cc.client.rdb.Incr(ctx, catalogVersionKey).Err()
}
