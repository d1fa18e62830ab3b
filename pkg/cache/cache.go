// Package cache provides a Redis-backed read-through cache for chart captures.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sigmapips/chart-capture/pkg/capture"
	"github.com/sigmapips/chart-capture/pkg/model"
)

// pngMagic is the fixed 8-byte PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// CachingBackend decorates a capture.Backend with Redis caching. Charts are
// expensive to render (seconds of browser time) and change slowly relative to
// the TTL, so repeated requests for the same chart are served from cache.
// The cache is TTL-bounded and loss-tolerant; it is not persistence.
type CachingBackend struct {
	inner     capture.Backend
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// New decorates a capture.Backend with Redis caching. If ttl is 0 or negative
// it defaults to 5 minutes. If namespace is empty, it uses "chart". A nil
// Redis client disables caching entirely.
func New(rdb *redis.Client, ttl time.Duration, inner capture.Backend, namespace string) *CachingBackend {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "chart"
	}
	return &CachingBackend{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// CaptureChart returns a cached PNG when available, otherwise captures via the
// underlying backend and stores the result.
func (c *CachingBackend) CaptureChart(ctx context.Context, req *model.ChartRequest) ([]byte, error) {
	// Bypass cache if Redis is not configured.
	if c.rdb == nil {
		return c.inner.CaptureChart(ctx, req)
	}

	key := c.cacheKey(req)

	// 1) Check cache.
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		if bytes.HasPrefix(b, pngMagic) {
			log.Printf("[CACHE] Hit for %s", key)
			return b, nil
		}
		// Delete corrupted cache entry.
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fall back to a live capture.
	png, err := c.inner.CaptureChart(ctx, req)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort).
	if err := c.rdb.Set(ctx, key, png, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] WARNING: failed to store %s: %v", key, err)
	}

	return png, nil
}

// Refresh forces a live capture and repopulates the cache entry. Used by the
// warmup scheduler to keep hot charts fresh.
func (c *CachingBackend) Refresh(ctx context.Context, req *model.ChartRequest) error {
	png, err := c.inner.CaptureChart(ctx, req)
	if err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	key := c.cacheKey(req)
	if err := c.rdb.Set(ctx, key, png, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refreshed capture %s: %w", key, err)
	}
	log.Printf("[CACHE] Refreshed %s (%d bytes)", key, len(png))
	return nil
}

// Close releases the underlying backend.
func (c *CachingBackend) Close() error {
	return c.inner.Close()
}

// Name returns the underlying backend name.
func (c *CachingBackend) Name() string {
	return c.inner.Name()
}

// cacheKey generates the cache key for a request.
func (c *CachingBackend) cacheKey(req *model.ChartRequest) string {
	theme := req.Theme
	if theme == "" {
		theme = model.ThemeDark
	}
	return fmt.Sprintf("%s:%s:%s:%s", c.namespace, safe(req.Symbol), safe(req.Timeframe), theme)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
