package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// ProductSource loads products from the system of record.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// ProductBatchSource is a ProductSource that can load many products at once.
type ProductBatchSource interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

// ProductCache is a read-through Redis cache in front of the catalog.
// Stock is read through a short TTL so server-side changes surface quickly.
type ProductCache struct {
	redis  *RedisClient
	source ProductSource
	ttl    time.Duration
}

// NewProductCache creates a new ProductCache.
func NewProductCache(redis *RedisClient, source ProductSource, ttl time.Duration) *ProductCache {
	return &ProductCache{redis: redis, source: source, ttl: ttl}
}

// keyByID returns the Redis key for a product.
func (c *ProductCache) keyByID(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// GetProduct returns the cached product or loads and caches it.
// Cache failures degrade to a direct source read.
func (c *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	key := c.keyByID(id)

	data, err := c.redis.Get(ctx, key)
	if err == nil {
		var p models.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		log.Warn().Str("product_id", id).Msg("Discarding undecodable cached product")
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Warn().Err(err).Str("product_id", id).Msg("Product cache read failed")
	}

	p, err := c.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	c.store(ctx, id, p)
	return p, nil
}

// GetProducts returns the products among ids, serving hits from Redis and
// loading the misses from the source in a single batch when it supports one.
// Ids the source does not know are absent from the result.
func (c *ProductCache) GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	var misses []string
	for _, id := range ids {
		data, err := c.redis.Get(ctx, c.keyByID(id))
		if err == nil {
			var p models.Product
			if json.Unmarshal(data, &p) == nil {
				out[id] = &p
				continue
			}
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	batch, ok := c.source.(ProductBatchSource)
	if !ok {
		for _, id := range misses {
			p, err := c.GetProduct(ctx, id)
			if errors.Is(err, utils.ErrProductNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out[id] = p
		}
		return out, nil
	}

	loaded, err := batch.GetProducts(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		out[id] = p
		c.store(ctx, id, p)
	}
	return out, nil
}

func (c *ProductCache) store(ctx context.Context, id string, p *models.Product) {
	if c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		log.Warn().Err(err).Str("product_id", id).Msg("Failed to marshal product")
		return
	}
	if err := c.redis.Set(ctx, c.keyByID(id), payload, c.ttl); err != nil {
		log.Warn().Err(err).Str("product_id", id).Msg("Product cache write failed")
	}
}

// Invalidate drops a cached product.
func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	return c.redis.Delete(ctx, c.keyByID(id))
}
