package service

import (
	"context"
	"errors"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/checkout/internal/cache"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
)

// CouponLookup reads coupons through an optional cache.
type CouponLookup struct {
	Repo  *repo.GormRepo
	Cache cache.CouponCache
}

func (c *CouponLookup) Find(ctx context.Context, code string) (*models.Coupon, error) {
	l := logging.FromContext(ctx).With("svc", "coupons")

	if c.Cache != nil {
		coupon, err := c.Cache.Get(ctx, code)
		if err == nil {
			return coupon, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.Warn("coupon_cache_get_failed", "error", err)
		}
	}

	coupon, err := c.Repo.FindCouponByCode(ctx, code)
	if err != nil {
		return nil, mapStoreErr(err, "find coupon")
	}

	if c.Cache != nil {
		if err := c.Cache.Set(ctx, coupon); err != nil {
			l.Warn("coupon_cache_set_failed", "error", err)
		}
	}
	return coupon, nil
}
