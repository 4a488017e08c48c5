package pricing

import (
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the amount a coupon takes off subtotal.
// Fixed coupons are applied as-is, even when they exceed the subtotal.
// Percentage discounts are rounded to cents.
func ComputeDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	if coupon.IsDiscountFixed {
		return coupon.DiscountValue
	}
	return subtotal.Mul(coupon.DiscountValue).Div(hundred).Round(2)
}
