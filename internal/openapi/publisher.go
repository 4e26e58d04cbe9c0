package openapi

import (
	"context"
	"fmt"
	"time"

	"github.com/lgulliver/openapi-gateway/internal/common"
)

const cacheKeyPrefix = "openapi:"

// CachePublisher mirrors documents to redis so a restarted process can serve
// the last good document before its first build completes
type CachePublisher struct {
	cache *common.Cache
	ttl   time.Duration
}

// NewCachePublisher creates a publisher; ttl 0 keeps documents indefinitely
func NewCachePublisher(cache *common.Cache, ttl time.Duration) *CachePublisher {
	return &CachePublisher{cache: cache, ttl: ttl}
}

// Publish stores the serialized document of version
func (p *CachePublisher) Publish(ctx context.Context, version string, document []byte) error {
	if err := p.cache.SetBytes(ctx, cacheKey(version), document, p.ttl); err != nil {
		return fmt.Errorf("failed to publish document %s: %w", version, err)
	}
	return nil
}

// Load returns the published document of version or common.ErrCacheMiss
func (p *CachePublisher) Load(ctx context.Context, version string) ([]byte, error) {
	return p.cache.GetBytes(ctx, cacheKey(version))
}

func cacheKey(version string) string {
	return cacheKeyPrefix + version
}
