package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ecommerce-api/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const productCacheKeyPrefix = "catalog:product:"

// ProductCacheEvictor is implemented by product repositories that keep copies
// of rows outside Postgres. Callers that remove products without going through
// Delete, such as a category cascade, evict them explicitly.
type ProductCacheEvictor interface {
	Evict(ctx context.Context, products ...*domain.Product)
}

// cachedProductRepository decorates a ProductRepository with a Redis
// cache-aside layer for single product lookups. Lists always hit Postgres.
type cachedProductRepository struct {
	ProductRepository
	cache  redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository wraps next with a read-through Redis cache.
// Cache failures are logged and the call falls through to next.
func NewCachedProductRepository(next ProductRepository, cache redis.Cmdable, ttl time.Duration, logger *zap.Logger) ProductRepository {
	return &cachedProductRepository{
		ProductRepository: next,
		cache:             cache,
		ttl:               ttl,
		logger:            logger,
	}
}

func productIDKey(id uuid.UUID) string {
	return productCacheKeyPrefix + "id:" + id.String()
}

func productSlugKey(slug string) string {
	return productCacheKeyPrefix + "slug:" + slug
}

func (r *cachedProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if product, ok := r.get(ctx, productIDKey(id)); ok {
		return product, nil
	}

	product, err := r.ProductRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.set(ctx, product)
	return product, nil
}

func (r *cachedProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	if product, ok := r.get(ctx, productSlugKey(slug)); ok {
		return product, nil
	}

	product, err := r.ProductRepository.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	r.set(ctx, product)
	return product, nil
}

func (r *cachedProductRepository) Update(ctx context.Context, product *domain.Product) error {
	// The slug may change, so drop the entry under the old one as well
	previous, findErr := r.ProductRepository.FindByID(ctx, product.ID)

	if err := r.ProductRepository.Update(ctx, product); err != nil {
		return err
	}

	keys := []string{productIDKey(product.ID), productSlugKey(product.Slug)}
	if findErr == nil && previous.Slug != product.Slug {
		keys = append(keys, productSlugKey(previous.Slug))
	}
	r.invalidate(ctx, keys...)
	return nil
}

func (r *cachedProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	previous, findErr := r.ProductRepository.FindByID(ctx, id)

	if err := r.ProductRepository.Delete(ctx, id); err != nil {
		return err
	}

	keys := []string{productIDKey(id)}
	if findErr == nil {
		keys = append(keys, productSlugKey(previous.Slug))
	}
	r.invalidate(ctx, keys...)
	return nil
}

func (r *cachedProductRepository) Evict(ctx context.Context, products ...*domain.Product) {
	if len(products) == 0 {
		return
	}
	keys := make([]string, 0, 2*len(products))
	for _, p := range products {
		keys = append(keys, productIDKey(p.ID), productSlugKey(p.Slug))
	}
	r.invalidate(ctx, keys...)
}

func (r *cachedProductRepository) get(ctx context.Context, key string) (*domain.Product, bool) {
	raw, err := r.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var product domain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		r.logger.Warn("product cache entry is corrupt", zap.String("key", key), zap.Error(err))
		r.invalidate(ctx, key)
		return nil, false
	}
	return &product, true
}

func (r *cachedProductRepository) set(ctx context.Context, product *domain.Product) {
	raw, err := json.Marshal(product)
	if err != nil {
		r.logger.Warn("failed to encode product for cache", zap.String("product_id", product.ID.String()), zap.Error(err))
		return
	}

	pipe := r.cache.Pipeline()
	pipe.Set(ctx, productIDKey(product.ID), raw, r.ttl)
	pipe.Set(ctx, productSlugKey(product.Slug), raw, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("product cache write failed", zap.String("product_id", product.ID.String()), zap.Error(err))
	}
}

func (r *cachedProductRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("product cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
