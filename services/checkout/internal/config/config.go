package config

import (
	"time"

	pkgconfig "github.com/Skotchmaster/storefront/pkg/config"
)

type Config struct {
	pkgconfig.Config

	CouponCacheTTL time.Duration
}

func Load() *Config {
	base := pkgconfig.Load()
	if base.ServiceName == "" {
		base.ServiceName = "checkout"
	}

	pkgconfig.MustNonEmpty(base.DatabaseURL, "DATABASE_URL")
	pkgconfig.MustNonEmptyBytes(base.JWTAccessSecret, "JWT_SECRET")
	pkgconfig.MustNonEmpty(base.TaxServiceURL, "TAX_SERVICE_URL")
	pkgconfig.MustNonEmpty(base.PaymentGatewayURL, "PAYMENT_GATEWAY_URL")
	pkgconfig.MustPositive(base.TaxTimeout, "TAX_TIMEOUT")
	pkgconfig.MustPositive(base.PaymentTimeout, "PAYMENT_TIMEOUT")

	cfg := &Config{
		Config:         base,
		CouponCacheTTL: pkgconfig.EnvDurationDefault("COUPON_CACHE_TTL", time.Hour),
	}
	pkgconfig.MustPositive(cfg.CouponCacheTTL, "COUPON_CACHE_TTL")
	return cfg
}
