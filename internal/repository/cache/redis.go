package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Pesokrava/review_service/internal/domain"
)

// RedisCache caches rating summaries and default review pages per product
type RedisCache struct {
	client           *redis.Client
	ratingSummaryTTL time.Duration
	reviewsListTTL   time.Duration
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, ratingSummaryTTL, reviewsListTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:           client,
		ratingSummaryTTL: ratingSummaryTTL,
		reviewsListTTL:   reviewsListTTL,
	}
}

// cachedPage stores a review page together with the total match count so a
// cache hit does not need a second count query
type cachedPage struct {
	Reviews []*domain.Review `json:"reviews"`
	Total   int              `json:"total"`
}

func (c *RedisCache) ratingSummaryKey(productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:rating_summary", productID.String())
}

func (c *RedisCache) reviewsListKey(productID uuid.UUID, limit, offset int) string {
	return fmt.Sprintf("product:%s:reviews:limit:%d:offset:%d", productID.String(), limit, offset)
}

func (c *RedisCache) productCacheKeysSet(productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:cache_keys", productID.String())
}

// GetRatingSummary retrieves a cached rating summary
func (c *RedisCache) GetRatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	val, err := c.client.Get(ctx, c.ratingSummaryKey(productID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var summary domain.RatingSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, err
	}

	return &summary, nil
}

// SetRatingSummary stores a rating summary in cache
func (c *RedisCache) SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.ratingSummaryKey(productID), data, c.ratingSummaryTTL).Err()
}

// GetReviewsList retrieves a cached review page for a product
func (c *RedisCache) GetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	key := c.reviewsListKey(productID, limit, offset)
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, err
	}

	var page cachedPage
	if err := json.Unmarshal([]byte(val), &page); err != nil {
		return nil, 0, err
	}

	return page.Reviews, page.Total, nil
}

// SetReviewsList stores a review page in cache and tracks the key in a SET
// so whole-product invalidation can find every cached page
func (c *RedisCache) SetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int, reviews []*domain.Review, total int) error {
	key := c.reviewsListKey(productID, limit, offset)
	trackingKey := c.productCacheKeysSet(productID)

	data, err := json.Marshal(cachedPage{Reviews: reviews, Total: total})
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, c.reviewsListTTL)
	pipe.SAdd(ctx, trackingKey, key)
	pipe.Expire(ctx, trackingKey, c.reviewsListTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateProduct removes the rating summary and every cached review page
// for the product
func (c *RedisCache) InvalidateProduct(ctx context.Context, productID uuid.UUID) error {
	if err := c.client.Del(ctx, c.ratingSummaryKey(productID)).Err(); err != nil && err != redis.Nil {
		return err
	}

	trackingKey := c.productCacheKeysSet(productID)
	keys, err := c.client.SMembers(ctx, trackingKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	if len(keys) > 0 {
		keys = append(keys, trackingKey)
		return c.client.Unlink(ctx, keys...).Err()
	}

	return nil
}
