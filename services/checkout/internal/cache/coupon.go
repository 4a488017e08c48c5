package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type CouponCache interface {
	Get(ctx context.Context, code string) (*models.Coupon, error)
	Set(ctx context.Context, coupon *models.Coupon) error
}

// RedisCache stores coupons by code. Coupons are immutable reference data, so
// entries are only ever expired, never invalidated.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, code string) (*models.Coupon, error) {
	data, err := r.client.Get(ctx, couponKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c models.Coupon
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal coupon failed: %w", err)
	}
	return &c, nil
}

func (r *RedisCache) Set(ctx context.Context, coupon *models.Coupon) error {
	data, err := json.Marshal(coupon)
	if err != nil {
		return fmt.Errorf("marshal coupon failed: %w", err)
	}
	if err := r.client.Set(ctx, couponKey(coupon.Code), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func couponKey(code string) string {
	return "coupon:" + strings.ToUpper(strings.TrimSpace(code))
}
